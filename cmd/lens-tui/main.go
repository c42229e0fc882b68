// ABOUTME: Interactive terminal client for the lens analytics backend
// ABOUTME: Streams assistant replies over SSE with slash commands for documents, queries, and history

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"

	"github.com/Lucky110405/major-prototype/internal/api"
	"github.com/Lucky110405/major-prototype/internal/auth"
	"github.com/Lucky110405/major-prototype/internal/config"
	"github.com/Lucky110405/major-prototype/internal/entity"
	"github.com/Lucky110405/major-prototype/internal/export"
	"github.com/Lucky110405/major-prototype/internal/history"
	"github.com/Lucky110405/major-prototype/internal/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _
| | ___ _ __  ___
| |/ _ \ '_ \/ __|
| |  __/ | | \__ \
|_|\___|_| |_|___/
`

// getConfigPath returns the path to the client config file.
// Priority: --config flag > LENS_CONFIG env var > ./lens.yaml >
// XDG_CONFIG_HOME/lens/config.yaml > ~/.config/lens/config.yaml
func getConfigPath(override string) string {
	if override != "" {
		return override
	}
	if envPath := os.Getenv("LENS_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("lens.yaml"); err == nil {
		return "lens.yaml"
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "lens.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "lens", "config.yaml")
}

// defaultHistoryPath returns where the archive database lives.
// Priority: XDG_DATA_HOME/lens > ~/.local/share/lens
func defaultHistoryPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "history.db" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "lens", "history.db")
}

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	backendFlag := flag.String("backend", "", "Override backend URL")
	flag.Parse()

	configPath := getConfigPath(*configFlag)

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}
	if *backendFlag != "" {
		cfg.Backend.URL = *backendFlag
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend: %s\n", cfg.Backend.URL)

	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = defaultHistoryPath()
	}
	green.Print("    ▶ ")
	if cfg.History.Disabled {
		fmt.Println("History: disabled")
	} else {
		fmt.Printf("History: %s\n", historyPath)
	}

	green.Print("    ▶ ")
	printTokenInfo(cfg.Backend.Token)
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, historyPath, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// printTokenInfo summarizes the configured credential on one line.
func printTokenInfo(token string) {
	yellow := color.New(color.FgYellow)

	if token == "" {
		fmt.Println("Token:   none")
		return
	}
	info, err := auth.Inspect(token)
	if err != nil {
		fmt.Println("Token:   configured (opaque)")
		return
	}
	fmt.Printf("Token:   %s", info.Subject)
	switch {
	case info.Expired():
		yellow.Print("  [expired]")
	case info.ExpiresWithin(24 * time.Hour):
		yellow.Printf("  [expires %s]", info.ExpiresAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func run(ctx context.Context, cfg *config.Config, historyPath string, logger *slog.Logger) error {
	client := api.New(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.RequestTimeout, logger)

	var store *history.Store
	if !cfg.History.Disabled {
		var err error
		store, err = history.New(historyPath)
		if err != nil {
			logger.Warn("history archive unavailable", "error", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	a := newApp(client, store, logger)
	defer a.dispose()

	return a.loop(ctx)
}

// app holds the REPL state: one backend client, the optional archive,
// and the current session.
type app struct {
	client *api.Client
	store  *history.Store
	logger *slog.Logger
	sess   *session.Session
	done   chan api.Event

	// streamedAny records whether the current turn printed fragments,
	// so a fragment-less final still gets its reply shown
	streamedAny bool
}

func newApp(client *api.Client, store *history.Store, logger *slog.Logger) *app {
	a := &app{
		client: client,
		store:  store,
		logger: logger,
		done:   make(chan api.Event, 4),
	}
	a.sess = a.newSession()
	return a
}

// newSession builds a session wired to the REPL's event printer.
func (a *app) newSession() *session.Session {
	var archive session.Archiver
	if a.store != nil {
		archive = a.store
	}
	return session.New(a.client, session.Options{
		Archive: archive,
		OnEvent: a.onEvent,
		Logger:  a.logger,
	})
}

// resetSession disposes the current session and installs a fresh one.
func (a *app) resetSession() {
	a.sess.Dispose()
	a.sess = a.newSession()
}

func (a *app) dispose() {
	a.sess.Dispose()
}

// onEvent renders stream events as they arrive. It runs on the stream
// goroutine; terminal events are forwarded to the REPL loop.
func (a *app) onEvent(ev api.Event) {
	dim := color.New(color.Faint)
	red := color.New(color.FgRed)

	switch ev.Type {
	case api.EventStatus:
		dim.Printf("[%s]\n", ev.Status)
	case api.EventPartial:
		a.streamedAny = true
		fmt.Print(ev.Fragment)
	case api.EventFinal:
		if !a.streamedAny {
			// No fragments came through, print the reconciled reply
			msgs := a.sess.Messages()
			if len(msgs) > 0 {
				fmt.Print(msgs[len(msgs)-1].Content)
			}
		}
		fmt.Println()
		if len(ev.Result) > 0 {
			dim.Println("[structured result available, /result to view]")
		}
	case api.EventError:
		red.Printf("[error] %s\n", ev.Err)
	}

	if ev.Terminal() {
		a.done <- ev
	}
}

// waitTurn blocks until the in-flight turn finishes or the context ends.
func (a *app) waitTurn(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-a.done:
	}
}

func (a *app) loop(ctx context.Context) error {
	fmt.Println("Ask a question to start a conversation. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		a.printPrompt()

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			a.runCommand(ctx, input)
			fmt.Println()
			continue
		}

		// A plain line is a prompt for the assistant
		a.streamedAny = false
		var err error
		if a.sess.State() == session.StateIdle {
			err = a.sess.Start(ctx, input)
		} else {
			err = a.sess.Send(ctx, input)
		}
		if err != nil {
			color.New(color.FgRed).Printf("[error] %v\n", err)
			fmt.Println()
			continue
		}
		a.waitTurn(ctx)
		fmt.Println()
	}
}

func (a *app) printPrompt() {
	conv := a.sess.Conversation()
	if conv.ID != "" {
		fmt.Printf("[%s]> ", shortID(conv.ID))
	} else {
		fmt.Print("> ")
	}
}

// runCommand dispatches one slash command.
func (a *app) runCommand(ctx context.Context, input string) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	var err error
	switch cmd {
	case "/help":
		printHelp()
	case "/docs":
		err = a.listDocuments(ctx)
	case "/upload":
		err = a.uploadDocument(ctx, args)
	case "/rm":
		err = a.removeDocument(ctx, args)
	case "/query":
		err = a.runQuery(ctx, args)
	case "/conversations":
		err = a.listConversations(ctx)
	case "/history":
		err = a.listArchived(ctx)
	case "/open":
		err = a.openConversation(ctx, args)
	case "/new":
		a.resetSession()
		fmt.Println("Started a fresh session.")
	case "/result":
		err = a.showResult()
	case "/export":
		err = a.exportConversation(args)
	case "/whoami":
		printTokenInfo(a.client.Token())
	default:
		fmt.Printf("Unknown command %s. /help for commands.\n", cmd)
	}

	if err != nil {
		color.New(color.FgRed).Printf("[error] %v\n", err)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /docs              List ingested documents")
	fmt.Println("  /upload <path>     Upload a document for ingestion")
	fmt.Println("  /rm <doc-id>       Delete a document")
	fmt.Println("  /query <text>      One-shot retrieval query (no conversation)")
	fmt.Println("  /conversations     List conversations on the backend")
	fmt.Println("  /history           List locally archived conversations")
	fmt.Println("  /open <conv-id>    Resume a conversation")
	fmt.Println("  /new               Start a fresh session")
	fmt.Println("  /result            Show the latest structured result")
	fmt.Println("  /export [path]     Export the conversation as HTML")
	fmt.Println("  /whoami            Show the configured credential")
	fmt.Println("  /help              Show this help")
	fmt.Println("  /quit              Exit")
}

func (a *app) listDocuments(ctx context.Context) error {
	docs, err := a.client.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}

	fmt.Printf("%d documents:\n", len(docs))
	for _, d := range docs {
		line := fmt.Sprintf("  %s  %s", shortID(d.ID), d.FileName)
		if d.FileSize > 0 {
			line += "  " + formatSize(d.FileSize)
		}
		if !d.UploadedAt.IsZero() {
			line += "  " + d.UploadedAt.Format("2006-01-02 15:04")
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) uploadDocument(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("usage: /upload <path>")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := a.client.UploadDocument(ctx, path, f)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s as %s\n", doc.FileName, doc.ID)
	return nil
}

func (a *app) removeDocument(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("usage: /rm <doc-id>")
	}
	if err := a.client.DeleteDocument(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

func (a *app) runQuery(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("usage: /query <text>")
	}

	res, err := a.client.RunQuery(ctx, text)
	if err != nil {
		return err
	}

	fmt.Println(res.Query.Answer)
	if len(res.Sources) > 0 {
		dim := color.New(color.Faint)
		dim.Println("Sources:")
		for i, src := range res.Sources {
			dim.Printf("  [%d] %s (%.2f) %s\n", i+1, src.FileName, src.Score, truncate(src.Snippet, 80))
		}
	}
	return nil
}

func (a *app) listConversations(ctx context.Context) error {
	convs, err := a.client.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations on the backend.")
		return nil
	}

	fmt.Printf("%d conversations:\n", len(convs))
	for _, c := range convs {
		printConversationLine(c)
	}
	return nil
}

func (a *app) listArchived(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("history archive is disabled")
	}

	convs, err := a.store.ListConversations(ctx, 20)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("Nothing archived yet.")
		return nil
	}

	fmt.Printf("%d archived conversations:\n", len(convs))
	for _, c := range convs {
		printConversationLine(c)
	}
	return nil
}

func printConversationLine(c entity.Conversation) {
	line := "  " + shortID(c.ID)
	if c.Title != "" {
		line += "  " + truncate(c.Title, 60)
	}
	if !c.CreatedAt.IsZero() {
		line += "  " + c.CreatedAt.Format("2006-01-02 15:04")
	}
	fmt.Println(line)
}

func (a *app) openConversation(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("usage: /open <conv-id>")
	}

	conv := entity.Conversation{ID: id}
	if a.store != nil {
		if archived, err := a.store.GetConversation(ctx, id); err == nil {
			conv = archived
		}
	}

	a.resetSession()
	if err := a.sess.Resume(ctx, conv); err != nil {
		return err
	}

	msgs := a.sess.Messages()
	fmt.Printf("Resumed %s (%d messages)\n", shortID(id), len(msgs))
	dim := color.New(color.Faint)
	for _, m := range tailMessages(msgs, 6) {
		label := "assistant"
		if m.Role == entity.RoleUser {
			label = "you"
		}
		dim.Printf("  %s: %s\n", label, truncate(m.Content, 100))
	}
	return nil
}

func (a *app) showResult() error {
	result := a.sess.Result()
	if len(result) == 0 {
		fmt.Println("No structured result for the latest turn.")
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func (a *app) exportConversation(path string) error {
	conv := a.sess.Conversation()
	if conv.ID == "" {
		return fmt.Errorf("no active conversation to export")
	}

	if path == "" {
		path = export.SuggestedName(conv, time.Now())
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.RenderHTML(f, conv, a.sess.Messages(), a.sess.Result()); err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// tailMessages returns the last n messages.
func tailMessages(msgs []entity.Message, n int) []entity.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// shortID trims long backend ids for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatSize renders a byte count in a compact human form.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr; stdout is the conversation surface
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			out:   os.Stderr,
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(h.out, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
