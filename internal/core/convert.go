package core

// convert.go provides payload access and type coercion for record writes.
//
// Payloads come from browsers, bundled datasets and older clients, so the
// same concept may arrive under different names or types:
//   - Historical field spellings (orderNumber vs order_number)
//   - Amounts as JSON numbers or as text with currency symbols
//   - Missing, null or empty values
//
// Text coerces to a trimmed string ("" when absent) and Number to a float64
// (0 when absent or unparseable). Neither ever fails.

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Payload is a parsed JSON object submitted for an upsert.
type Payload struct {
	obj gjson.Result
	id  string // overrides obj's id when set (PUT /api/{kind}/{id})
}

// ParsePayload parses a request body into a Payload.
// Returns ErrInvalidPayload if the body is not a JSON object.
func ParsePayload(body []byte) (Payload, error) {
	if !gjson.ValidBytes(body) {
		return Payload{}, fmt.Errorf("%w: malformed JSON", ErrInvalidPayload)
	}
	obj := gjson.ParseBytes(body)
	if !obj.IsObject() {
		return Payload{}, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	return Payload{obj: obj}, nil
}

// PayloadOf marshals v and parses it as a Payload.
func PayloadOf(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return ParsePayload(b)
}

// WithID returns a copy of the payload whose id is forced to id.
func (p Payload) WithID(id string) Payload {
	p.id = id
	return p
}

// ID returns the payload's identity, or "" when the record is new.
func (p Payload) ID() string {
	if p.id != "" {
		return p.id
	}
	return CoerceText(p.obj.Get("id"))
}

// Text returns the first present value among name and its aliases, coerced to text.
func (p Payload) Text(name string, aliases ...string) string {
	return CoerceText(p.lookup(name, aliases))
}

// Number returns the first present value among name and its aliases, coerced to a number.
func (p Payload) Number(name string, aliases ...string) float64 {
	return CoerceNumber(p.lookup(name, aliases))
}

// TextField reads a declared text field, honouring its aliases.
func (p Payload) TextField(spec FieldSpec) string {
	return p.Text(spec.Name, spec.Aliases...)
}

// NumberField reads a declared numeric field, honouring its aliases.
func (p Payload) NumberField(spec FieldSpec) float64 {
	return p.Number(spec.Name, spec.Aliases...)
}

// lookup resolves a field through its alias chain. A value counts as
// present unless it is missing, null, or blank text.
func (p Payload) lookup(name string, aliases []string) gjson.Result {
	for _, key := range append([]string{name}, aliases...) {
		v := p.obj.Get(key)
		if isPresent(v) {
			return v
		}
	}
	return gjson.Result{}
}

func isPresent(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.String:
		return strings.TrimSpace(v.Str) != ""
	default:
		return v.Exists()
	}
}

// CoerceText converts a JSON value to trimmed text.
// Numbers and booleans keep their literal form; objects, arrays and null become "".
func CoerceText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		return strings.TrimSpace(v.Raw)
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return ""
	}
}

// CoerceNumber converts a JSON value to a finite float64, defaulting to 0.
func CoerceNumber(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return finite(v.Num)
	case gjson.String:
		return ParseAmount(v.Str)
	default:
		return 0
	}
}

// ParseAmount parses a user-entered amount.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
// Returns 0 for empty or invalid input.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Remove common currency symbols and thousands separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return finite(d.InexactFloat64())
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatAmount renders a number with exactly two decimal places,
// independent of locale. Rounding works on the exact binary value, so
// 2.675 renders as 2.67.
func FormatAmount(f float64) string {
	return strconv.FormatFloat(finite(f), 'f', 2, 64)
}

// NewID returns a fresh record identity: a random UUID in 32-char hex form.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// toDBColumnName converts a display field name to a database column name.
// "Transaction ID" -> "transaction_id"
// "notes" -> "notes" (no change if already snake_case)
func toDBColumnName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
