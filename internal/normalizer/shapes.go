package normalizer

import (
	"strings"
	"unicode/utf8"

	"sms-activation-tracker/internal/apierr"
)

// Operation names the upstream call a payload answers. It selects the
// acceptance policy applied before shape resolution.
type Operation string

const (
	OpServices          Operation = "services"
	OpCountries         Operation = "countries"
	OpPrices            Operation = "prices"
	OpCreateActivation  Operation = "create_activation"
	OpActiveActivations Operation = "active_activations"
	OpStatus            Operation = "status"
	OpSetStatus         Operation = "set_status"
	OpBalance           Operation = "balance"
)

type policy struct {
	// allowText accepts non-JSON text as a successful result.
	allowText bool
	// collection turns "no results" into an empty success.
	collection bool
}

var policies = map[Operation]policy{
	OpServices:          {collection: true},
	OpCountries:         {collection: true},
	OpPrices:            {collection: true},
	OpCreateActivation:  {allowText: true},
	OpActiveActivations: {collection: true},
	OpStatus:            {allowText: true},
	OpSetStatus:         {allowText: true},
	OpBalance:           {allowText: true},
}

// prepare classifies raw and applies the failure rules shared by every
// operation. empty is true when the payload means "nothing to show".
func prepare(op Operation, raw string) (env Envelope, empty bool, err error) {
	rules := policies[op]
	env = Classify(raw)

	switch env.Shape {
	case ShapeSentinel:
		return failWith(env, resolveFailure(rules, env.Text, env.Text))
	case ShapeErrorObject:
		code := env.ErrorCode
		if code == "" {
			code = env.ErrorMessage
		}
		if isSentinel(code) || noResultsCodes[sentinelCode(code)] {
			return failWith(env, resolveFailure(rules, code, env.Text))
		}
		message := env.ErrorMessage
		if message == "" {
			message = "upstream reported an error"
		}
		return env, false, apierr.UpstreamReported(Translate(message), env.Text)
	case ShapeText:
		if env.Text == "" {
			if rules.collection {
				return env, true, nil
			}
			return env, false, apierr.Malformed("empty response", "")
		}
		if !rules.allowText {
			return env, false, apierr.Malformed("expected a JSON response for "+string(op), env.Text)
		}
	}

	return env, false, nil
}

func failWith(env Envelope, err error) (Envelope, bool, error) {
	if isEmpty(err) {
		return env, true, nil
	}
	return env, false, err
}

// resolveFailure carves "no results" out of the failure set for collections.
func resolveFailure(rules policy, code, literal string) error {
	err := sentinelError(code)
	if apierr.Is(err, apierr.KindNoResults) {
		if rules.collection {
			return errEmpty
		}
		return apierr.UpstreamReported(Translate(code), literal)
	}
	return err
}

// errEmpty is an internal marker; operations turn it into an empty result.
var errEmpty = apierr.NoResults("")

func isEmpty(err error) bool {
	return err == errEmpty
}

// listItems resolves the three physical forms of a logical list: a JSON
// array, a dictionary-as-array and a {rows: [...]} wrapper.
func listItems(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil:
		return []any{}, true
	case []any:
		return v, true
	case map[string]any:
		if len(v) == 0 {
			return []any{}, true
		}
		if rows, ok := v["rows"]; ok {
			return listItems(rows)
		}
		if isIndexed(v) {
			return indexedValues(v), true
		}
	}
	return nil, false
}

// mergeSingleKeyObjects merges an array of {outerKey: inner} objects into one
// mapping. A later block with the same outer key replaces the earlier one.
func mergeSingleKeyObjects(items []any) (map[string]any, bool) {
	merged := make(map[string]any, len(items))
	for _, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		for key, inner := range block {
			merged[key] = inner
		}
	}
	return merged, true
}

// unwrapResource returns the value under the first present resource key of a
// success envelope.
func unwrapResource(obj map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := obj[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func isSuccessEnvelope(obj map[string]any) bool {
	status, ok := obj["status"].(string)
	return ok && strings.EqualFold(strings.TrimSpace(status), "success")
}

func malformed(op Operation, env Envelope) error {
	return apierr.Malformed("unexpected "+env.Shape.String()+" payload for "+string(op), truncate(env.Text, 256))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
