package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Ref is a reference to another entity as clients send it: a bare id string,
// {"id": "..."} or {"_id": "..."}. It distinguishes an absent field (not set)
// from an explicit null or empty id (set, clears the reference).
type Ref struct {
	id  string
	set bool
}

// RefTo returns a set reference to id.
func RefTo(id string) Ref {
	return Ref{id: strings.TrimSpace(id), set: true}
}

// NullRef returns a set, empty reference.
func NullRef() Ref {
	return Ref{set: true}
}

// IsSet reports whether the field was present in the request.
func (r Ref) IsSet() bool { return r.set }

// ID returns the referenced id, or "" for a null reference.
func (r Ref) ID() string { return r.id }

// Ptr returns the id as a nullable column value.
func (r Ref) Ptr() *string {
	if r.id == "" {
		return nil
	}
	id := r.id
	return &id
}

var errBadRef = errors.New("reference must be an id string or an object with an id")

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ref) UnmarshalJSON(b []byte) error {
	r.set = true
	r.id = ""

	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		r.id = strings.TrimSpace(s)
		return nil
	case len(b) > 0 && b[0] == '{':
		var obj struct {
			ID      *string `json:"id"`
			MongoID *string `json:"_id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return errBadRef
		}
		switch {
		case obj.ID != nil:
			r.id = strings.TrimSpace(*obj.ID)
		case obj.MongoID != nil:
			r.id = strings.TrimSpace(*obj.MongoID)
		default:
			return errBadRef
		}
		return nil
	default:
		return errBadRef
	}
}

// MarshalJSON renders the reference as a bare id or null.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// Number is a numeric field that may arrive as a JSON number or a numeric
// string. It keeps the raw text so that coercion failures can be reported
// with the offending field; coercion happens in Decimal and Int.
type Number struct {
	raw string
	set bool
}

// NumberOf builds a set Number from text.
func NumberOf(raw string) Number {
	return Number{raw: strings.TrimSpace(raw), set: true}
}

// IsSet reports whether a non-null value was supplied. An empty string counts
// as not supplied.
func (n Number) IsSet() bool { return n.set && n.raw != "" }

// Raw returns the text as received.
func (n Number) Raw() string { return n.raw }

var (
	errNotNumeric = errors.New("is not a number")
	errNotInteger = errors.New("is not a whole number")
)

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumberOf(s)
		return nil
	}
	if len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')) {
		*n = NumberOf(string(b))
		return nil
	}
	// Booleans, arrays and objects are kept so coercion reports them with
	// their field name.
	*n = Number{raw: string(b), set: true}
	return nil
}

// MarshalJSON renders the raw value as a JSON number, or null when unset.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.IsSet() {
		return []byte("null"), nil
	}
	d, err := n.Decimal()
	if err != nil {
		return json.Marshal(n.raw)
	}
	return []byte(d.String()), nil
}

// Decimal coerces the value. NaN, infinities and non-numeric text fail.
func (n Number) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.raw)
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	return d, nil
}

// Int coerces the value to a whole number. "5" and 5.0 are accepted, 5.5 is not.
func (n Number) Int() (int, error) {
	d, err := n.Decimal()
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, errNotInteger
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) || d.LessThan(decimal.NewFromInt(math.MinInt32)) {
		return 0, errNotNumeric
	}
	return int(d.IntPart()), nil
}

// Text is a string field that may also arrive as a JSON number, such as a
// size of 42.
type Text struct {
	value string
	set   bool
}

// TextOf builds a set Text.
func TextOf(s string) Text { return Text{value: s, set: true} }

// String returns the trimmed value.
func (t Text) String() string { return strings.TrimSpace(t.value) }

// IsSet reports whether a non-blank value was supplied.
func (t Text) IsSet() bool { return t.set && t.String() != "" }

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = Text{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = TextOf(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return errors.New("must be a string")
	}
	*t = TextOf(num.String())
	return nil
}

// MarshalJSON renders the value as a string.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
