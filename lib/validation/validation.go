package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxK bounds the k and TopK values callers can request.
const MaxK = 100

// MaxQueryLength bounds free-text title queries, in runes.
const MaxQueryLength = 200

// ErrInvalid marks parameter errors that should map to 400.
var ErrInvalid = errors.New("invalid parameter")

// Invalidf builds an ErrInvalid error with a message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ValidateQuery trims a title query and rejects empty or oversized input.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", Invalidf("query must not be empty")
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", Invalidf("query must be at most %d characters", MaxQueryLength)
	}
	return q, nil
}

// ValidateK checks a result count is within [1, MaxK].
func ValidateK(k int) error {
	if k < 1 || k > MaxK {
		return Invalidf("k must be between 1 and %d", MaxK)
	}
	return nil
}

// ValidateThreshold checks a like threshold is within (0, 5].
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t <= 0 || t > 5 {
		return Invalidf("threshold must be in (0, 5]")
	}
	return nil
}

// ValidateFraction checks a similar-user fraction is within (0, 1). Zero is
// rejected because an unset fraction means the default.
func ValidateFraction(f float64) error {
	if math.IsNaN(f) || f <= 0 || f >= 1 {
		return Invalidf("fraction must be in (0, 1)")
	}
	return nil
}

// IntParam reads an optional integer query parameter.
func IntParam(values url.Values, key string, def int) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, Invalidf("%s must be an integer", key)
	}
	return v, nil
}

// FloatParam reads an optional float query parameter.
func FloatParam(values url.Values, key string, def float64) (float64, error) {
	raw := values.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, Invalidf("%s must be a number", key)
	}
	return v, nil
}

// WriteError writes a JSON error response with the given status.
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		slog.Error("Failed to encode error response", slog.Any("error", err))
	}
}
