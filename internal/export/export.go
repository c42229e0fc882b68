// ABOUTME: Transcript export to a standalone HTML page
// ABOUTME: Renders markdown replies with goldmark inside an html/template shell

package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
  header { border-bottom: 1px solid #ddd; margin-bottom: 1.5rem; padding-bottom: 0.5rem; }
  header .meta { color: #666; font-size: 0.85rem; }
  .turn { margin-bottom: 1.25rem; }
  .turn .role { font-weight: 600; font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.05em; color: #666; }
  .turn.user .role { color: #0b5cad; }
  .turn .body { margin-top: 0.25rem; }
  .turn .body pre { background: #f6f6f6; padding: 0.75rem; overflow-x: auto; }
  section.result { border-top: 1px solid #ddd; margin-top: 2rem; padding-top: 1rem; }
  section.result pre { background: #f6f6f6; padding: 0.75rem; overflow-x: auto; font-size: 0.85rem; }
</style>
</head>
<body>
<header>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Meta}}</div>
</header>
{{range .Turns}}<div class="turn {{.Class}}">
  <div class="role">{{.Role}}</div>
  <div class="body">{{.Body}}</div>
</div>
{{end}}{{if .Result}}<section class="result">
  <h2>Analysis result</h2>
  <pre>{{.Result}}</pre>
</section>
{{end}}</body>
</html>
`

var page = template.Must(template.New("export").Parse(pageTemplate))

type turn struct {
	Role  string
	Class string
	Body  template.HTML
}

type pageData struct {
	Title  string
	Meta   string
	Turns  []turn
	Result string
}

// RenderHTML writes a self-contained HTML transcript of the
// conversation. Message content is treated as markdown; raw HTML inside
// it is stripped by the renderer. The structured result, when present,
// is appended pretty-printed.
func RenderHTML(w io.Writer, conv entity.Conversation, msgs []entity.Message, result entity.AnalysisResult) error {
	data := pageData{
		Title: conv.Title,
		Meta:  fmt.Sprintf("%d messages", len(msgs)),
	}
	if data.Title == "" {
		data.Title = "Conversation " + conv.ID
	}
	if !conv.CreatedAt.IsZero() {
		data.Meta = fmt.Sprintf("started %s, %d messages",
			conv.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), len(msgs))
	}

	for _, msg := range msgs {
		body, err := renderMarkdown(msg.Content)
		if err != nil {
			return fmt.Errorf("rendering message %s: %w", msg.ID, err)
		}
		t := turn{Role: "Assistant", Class: "assistant", Body: body}
		if msg.Role == entity.RoleUser {
			t.Role = "You"
			t.Class = "user"
		}
		data.Turns = append(data.Turns, t)
	}

	if len(result) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, result, "", "  "); err != nil {
			// Not valid JSON, export it verbatim
			data.Result = string(result)
		} else {
			data.Result = pretty.String()
		}
	}

	return page.Execute(w, data)
}

// renderMarkdown converts one message body to HTML.
func renderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// SuggestedName builds a filesystem-friendly file name for an export,
// derived from the conversation title and the date.
func SuggestedName(conv entity.Conversation, now time.Time) string {
	slug := slugify(conv.Title)
	if slug == "" {
		slug = slugify(conv.ID)
	}
	if slug == "" {
		slug = "conversation"
	}
	return fmt.Sprintf("%s-%s.html", slug, now.UTC().Format("20060102"))
}

// slugify lowercases and reduces a title to hyphen-separated words.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if runes := []rune(out); len(runes) > 48 {
		out = strings.Trim(string(runes[:48]), "-")
	}
	return out
}
