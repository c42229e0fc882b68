// ABOUTME: Normalizes heterogeneous backend payloads into canonical entities.
// ABOUTME: Resolves direct, wrapped, listed, and scalar shapes and recovers identities deterministically.

package entity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
)

// maxIdentityDepth bounds the nested identity search. Identities deeper
// than this are treated as absent.
const maxIdentityDepth = 3

// maxUnwrapDepth bounds how many wrapper layers resolve will peel off a
// payload before giving up.
const maxUnwrapDepth = 3

// NormalizationError reports a payload from which no entity identity
// could be recovered.
type NormalizationError struct {
	Kind Kind
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("no recoverable %s identity in payload", e.Kind)
}

// Normalizer absorbs the shape variance of backend responses. The same
// logical entity may arrive as a direct object, wrapped under "data" or
// a kind-named key, as the first element of an array, or as a bare
// scalar identity. All single-entity methods return the canonical
// struct or a *NormalizationError; they never panic on malformed input.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer returns a Normalizer that logs shape diagnostics to the
// given logger. A nil logger falls back to slog.Default().
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With("component", "normalize")}
}

// Conversation normalizes a conversation payload. Scalar payloads are
// promoted to an entity with the scalar as identity and all other
// fields taken from defaults.
func (n *Normalizer) Conversation(payload any, defaults Conversation) (Conversation, error) {
	obj, scalar, ok := resolve(payload, KindConversation, 0)
	if !ok {
		return Conversation{}, n.fail(KindConversation, payload)
	}
	out := defaults
	if obj == nil {
		out.ID = scalar
		return out, nil
	}
	id, found := searchIdentity(obj, KindConversation, 0)
	if !found {
		return Conversation{}, n.fail(KindConversation, payload)
	}
	n.decode(obj, &out)
	out.ID = id
	return out, nil
}

// Message normalizes a message payload. See Conversation for the shape
// rules.
func (n *Normalizer) Message(payload any, defaults Message) (Message, error) {
	obj, scalar, ok := resolve(payload, KindMessage, 0)
	if !ok {
		return Message{}, n.fail(KindMessage, payload)
	}
	out := defaults
	if obj == nil {
		out.ID = scalar
		return out, nil
	}
	id, found := searchIdentity(obj, KindMessage, 0)
	if !found {
		return Message{}, n.fail(KindMessage, payload)
	}
	n.decode(obj, &out)
	out.ID = id
	return out, nil
}

// Document normalizes a document payload. See Conversation for the
// shape rules.
func (n *Normalizer) Document(payload any, defaults Document) (Document, error) {
	obj, scalar, ok := resolve(payload, KindDocument, 0)
	if !ok {
		return Document{}, n.fail(KindDocument, payload)
	}
	out := defaults
	if obj == nil {
		out.ID = scalar
		return out, nil
	}
	id, found := searchIdentity(obj, KindDocument, 0)
	if !found {
		return Document{}, n.fail(KindDocument, payload)
	}
	n.decode(obj, &out)
	out.ID = id
	return out, nil
}

// Query normalizes a query payload. See Conversation for the shape
// rules.
func (n *Normalizer) Query(payload any, defaults Query) (Query, error) {
	obj, scalar, ok := resolve(payload, KindQuery, 0)
	if !ok {
		return Query{}, n.fail(KindQuery, payload)
	}
	out := defaults
	if obj == nil {
		out.ID = scalar
		return out, nil
	}
	id, found := searchIdentity(obj, KindQuery, 0)
	if !found {
		return Query{}, n.fail(KindQuery, payload)
	}
	n.decode(obj, &out)
	out.ID = id
	return out, nil
}

// Documents normalizes a document list payload. Payloads that are not
// an array and contain no array under a conventional key yield an empty
// slice, never an error. Elements without a recoverable identity are
// skipped.
func (n *Normalizer) Documents(payload any) []Document {
	items := extractList(payload, KindDocument, 0)
	out := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := n.Document(item, Document{})
		if err != nil {
			n.logger.Debug("skipping document without identity")
			continue
		}
		out = append(out, doc)
	}
	return out
}

// Conversations normalizes a conversation list payload. See Documents
// for the list rules.
func (n *Normalizer) Conversations(payload any) []Conversation {
	items := extractList(payload, KindConversation, 0)
	out := make([]Conversation, 0, len(items))
	for _, item := range items {
		conv, err := n.Conversation(item, Conversation{})
		if err != nil {
			n.logger.Debug("skipping conversation without identity")
			continue
		}
		out = append(out, conv)
	}
	return out
}

// Messages normalizes a message list payload. See Documents for the
// list rules.
func (n *Normalizer) Messages(payload any) []Message {
	items := extractList(payload, KindMessage, 0)
	out := make([]Message, 0, len(items))
	for _, item := range items {
		msg, err := n.Message(item, Message{})
		if err != nil {
			n.logger.Debug("skipping message without identity")
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Sources decodes the retrieved-chunk list attached to a query
// response. Sources carry no identity, so anything that does not decode
// cleanly is dropped.
func (n *Normalizer) Sources(payload any) []Source {
	items := extractList(payload, Kind("source"), 0)
	out := make([]Source, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var src Source
		n.decode(obj, &src)
		out = append(out, src)
	}
	return out
}

func (n *Normalizer) fail(kind Kind, payload any) error {
	n.logger.Warn("payload has no recoverable identity",
		"kind", string(kind),
		"payload_type", fmt.Sprintf("%T", payload))
	return &NormalizationError{Kind: kind}
}

// decode copies matching fields from obj into out via a JSON round
// trip. Field-level mismatches (a malformed timestamp, a number where a
// string belongs) are logged and skipped; identity recovery has already
// succeeded by the time decode runs.
func (n *Normalizer) decode(obj map[string]any, out any) {
	raw, err := json.Marshal(obj)
	if err == nil {
		err = json.Unmarshal(raw, out)
	}
	if err != nil {
		n.logger.Debug("partial entity decode", "error", err)
	}
}

// resolve reduces a decoded payload to either an object map or a scalar
// identity. Exactly one of obj and scalar is set when ok is true.
func resolve(payload any, kind Kind, depth int) (obj map[string]any, scalar string, ok bool) {
	switch p := payload.(type) {
	case string:
		if p == "" {
			return nil, "", false
		}
		return nil, p, true
	case float64:
		return nil, formatNumber(p), true
	case map[string]any:
		if depth < maxUnwrapDepth {
			for _, key := range []string{"data", string(kind), kind.plural()} {
				inner, present := p[key]
				if !present || inner == nil {
					continue
				}
				switch inner.(type) {
				case map[string]any, []any, string:
					return resolve(inner, kind, depth+1)
				}
			}
		}
		return p, "", true
	case []any:
		if len(p) == 0 {
			return nil, "", false
		}
		return resolve(p[0], kind, depth+1)
	default:
		return nil, "", false
	}
}

// searchIdentity finds an identity for kind in obj. Direct fields win
// over nested ones; nested objects are visited depth first in sorted
// key order so repeated runs over the same payload agree.
func searchIdentity(obj map[string]any, kind Kind, depth int) (string, bool) {
	for _, key := range identityKeys(kind) {
		if id, ok := identityValue(obj[key]); ok {
			return id, true
		}
	}
	if depth >= maxIdentityDepth {
		return "", false
	}
	for _, key := range sortedKeys(obj) {
		child, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		if id, ok := searchIdentity(child, kind, depth+1); ok {
			return id, true
		}
	}
	return "", false
}

func identityKeys(kind Kind) []string {
	return []string{"id", string(kind) + "_id", "uuid"}
}

func identityValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case float64:
		return formatNumber(val), true
	default:
		return "", false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// extractList digs the element slice out of a list payload. Wrapper
// maps are searched under the conventional collection keys; anything
// else yields nil.
func extractList(payload any, kind Kind, depth int) []any {
	switch p := payload.(type) {
	case []any:
		return p
	case map[string]any:
		if depth >= maxUnwrapDepth {
			return nil
		}
		for _, key := range []string{"data", kind.plural(), "items", "results"} {
			inner, present := p[key]
			if !present || inner == nil {
				continue
			}
			switch inner.(type) {
			case []any, map[string]any:
				if items := extractList(inner, kind, depth+1); items != nil {
					return items
				}
			}
		}
		return nil
	default:
		return nil
	}
}
