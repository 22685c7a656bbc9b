// Package lifecycle classifies an activation's display state from its raw
// upstream status and the code it carries.
package lifecycle

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind is a discrete display state
type Kind int

const (
	KindUnknown Kind = iota
	KindWaitingForSMS
	KindRetrying
	KindCompleted
	KindCodeReceived
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindWaitingForSMS: "waiting_for_sms",
	KindRetrying:      "retrying",
	KindCompleted:     "completed",
	KindCodeReceived:  "code_received",
	KindCanceled:      "canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// State is the classification result. Raw is kept for every state so
// Unknown can display the value it could not place.
type State struct {
	Kind Kind
	Raw  int
}

func (s State) String() string {
	if s.Kind == KindUnknown {
		return "unknown(" + strconv.Itoa(s.Raw) + ")"
	}
	return s.Kind.String()
}

// MarshalJSON renders the state as {"name": ..., "raw": ...}
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
		Raw  int    `json:"raw"`
	}{Name: s.Kind.String(), Raw: s.Raw})
}

// Raw upstream status codes
const (
	rawWaiting   = 1
	rawRetrying  = 3
	rawReceived  = 4
	rawCompleted = 6
	rawCanceled  = 8
)

// Classify maps a raw status and the record's code to a display state.
// A usable code always wins. Status 4 without a code is still waiting.
func Classify(rawStatus int, code string) State {
	if HasUsableCode(code) {
		return State{Kind: KindCodeReceived, Raw: rawStatus}
	}

	switch rawStatus {
	case rawWaiting, rawReceived:
		return State{Kind: KindWaitingForSMS, Raw: rawStatus}
	case rawRetrying:
		return State{Kind: KindRetrying, Raw: rawStatus}
	case rawCompleted:
		return State{Kind: KindCompleted, Raw: rawStatus}
	case rawCanceled:
		return State{Kind: KindCanceled, Raw: rawStatus}
	default:
		return State{Kind: KindUnknown, Raw: rawStatus}
	}
}

// IsTerminal reports whether a record must not be polled again:
// canceled with no usable code.
func IsTerminal(rawStatus int, code string) bool {
	return rawStatus == rawCanceled && !HasUsableCode(code)
}

// HasUsableCode reports whether code carries an actual verification code.
func HasUsableCode(code string) bool {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return false
	}
	switch strings.ToLower(trimmed) {
	case "null", "undefined":
		return false
	}
	if isDecorationOnly(trimmed) {
		return false
	}
	return StripCode(trimmed) != ""
}

// isDecorationOnly matches a single bracketed token, e.g. "[]", "[1234]" or
// "[[1234]]". "[12] [34]" is two tokens and does not match.
func isDecorationOnly(code string) bool {
	if !strings.HasPrefix(code, "[") || !strings.HasSuffix(code, "]") {
		return false
	}
	inner := strings.TrimRight(strings.TrimLeft(code, "["), "]")
	return !strings.ContainsAny(inner, "[]")
}

// StripCode removes bracket decoration and surrounding whitespace.
func StripCode(code string) string {
	stripped := strings.Map(func(r rune) rune {
		if r == '[' || r == ']' {
			return -1
		}
		return r
	}, code)
	return strings.TrimSpace(stripped)
}
