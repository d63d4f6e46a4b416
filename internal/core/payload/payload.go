// Package payload decodes response fields whose shape varies between
// providers: a bare string, an object wrapping a "content" string, or
// something else that is carried as text.
package payload

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	String
	Object
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Payload is the decoded form. Text is always populated: the string itself,
// the object's content, or the compact raw value for Unknown.
type Payload struct {
	Kind Kind
	Text string
}

// Decode classifies raw. Invalid JSON is Unknown with the trimmed input as text.
func Decode(raw []byte) Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Payload{Kind: Unknown}
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return Payload{Kind: String, Text: s}
	}

	var obj struct {
		Content *string `json:"content"`
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &obj); err == nil && obj.Content != nil {
			return Payload{Kind: Object, Text: *obj.Content}
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err == nil {
		return Payload{Kind: Unknown, Text: compact.String()}
	}
	return Payload{Kind: Unknown, Text: string(trimmed)}
}

// Message extracts a human readable message from an error body shaped like
// {"message": ...} or {"error": [{"message": ...}]}. It falls back to the
// trimmed body.
func Message(body []byte) string {
	var flat struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(flat.Message) > 0 {
		return Decode(flat.Message).Text
	}
	if len(flat.Error) > 0 {
		var list []struct {
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(flat.Error, &list); err == nil {
			msgs := make([]string, 0, len(list))
			for _, m := range list {
				if len(m.Message) > 0 {
					msgs = append(msgs, Decode(m.Message).Text)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		return Decode(flat.Error).Text
	}
	return strings.TrimSpace(string(body))
}
