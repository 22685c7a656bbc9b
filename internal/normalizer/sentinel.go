package normalizer

import (
	"strings"

	"sms-activation-tracker/internal/apierr"
)

var sentinelPrefixes = []string{"NO_", "BAD_", "ERROR_"}

// Failures the provider reports without one of the usual prefixes.
var bareSentinels = []string{
	"EARLY_CANCEL_DENIED",
	"WRONG_ACTIVATION_ID",
	"WRONG_SERVICE",
	"WRONG_MAX_PRICE",
	"WRONG_EXCEPTION_PHONE",
	"BANNED",
	"CHANNELS_LIMIT",
	"ACCOUNT_INACTIVE",
	"SQL_ERROR",
}

// noResultsCodes mean "nothing to show" and become empty collections.
var noResultsCodes = map[string]bool{
	"NO_ACTIVATIONS": true,
	"NO_DATA":        true,
}

var translations = map[string]string{
	"NO_KEY":              "API key is missing",
	"BAD_KEY":             "invalid API key",
	"ERROR_SQL":           "upstream database error, try again",
	"SQL_ERROR":           "upstream database error, try again",
	"NO_ACTIVATIONS":      "no active activations",
	"NO_ACTIVATION":       "activation id doesn't exist",
	"WRONG_ACTIVATION_ID": "activation id doesn't exist",
	"EARLY_CANCEL_DENIED": "can't cancel within first 2 minutes",
	"BAD_STATUS":          "invalid status",
	"BAD_ACTION":          "invalid action",
	"BAD_SERVICE":         "invalid service",
	"WRONG_SERVICE":       "invalid service",
	"NO_NUMBERS":          "no numbers available for this service and country",
	"NO_BALANCE":          "insufficient balance",
	"WRONG_MAX_PRICE":     "price is above the allowed maximum",
	"BANNED":              "account is temporarily banned",
	"CHANNELS_LIMIT":      "account is blocked",
	"ACCOUNT_INACTIVE":    "no numbers available",
}

// sentinelCode returns the part of a sentinel before the first colon.
func sentinelCode(text string) string {
	code, _, _ := strings.Cut(strings.TrimSpace(text), ":")
	return strings.ToUpper(strings.TrimSpace(code))
}

// isSentinel reports whether text is a bare failure sentinel.
func isSentinel(text string) bool {
	if text == "" || strings.ContainsAny(text[:1], "{[\"") {
		return false
	}
	code := sentinelCode(text)
	if !isSentinelToken(code) {
		return false
	}
	for _, prefix := range sentinelPrefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	for _, bare := range bareSentinels {
		if code == bare {
			return true
		}
	}
	return false
}

// isSentinelToken accepts upper-case identifiers only, so free text such as
// "No numbers left" is never mistaken for a sentinel.
func isSentinelToken(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// Translate returns the human readable message of an upstream code, or the
// code itself when it is not known.
func Translate(text string) string {
	if message, ok := translations[sentinelCode(text)]; ok {
		return message
	}
	return strings.TrimSpace(text)
}

// sentinelError maps a sentinel or an embedded error code to the taxonomy.
func sentinelError(text string) error {
	code := sentinelCode(text)
	switch {
	case code == "NO_KEY" || code == "BAD_KEY":
		return apierr.Auth(Translate(text), text)
	case code == "ERROR_SQL" || code == "SQL_ERROR":
		return apierr.Transient(Translate(text), text)
	case noResultsCodes[code]:
		return apierr.NoResults(text)
	default:
		return apierr.UpstreamReported(Translate(text), text)
	}
}
