package pricing

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Input is a raw numeric field as typed by the user. It may be empty or
// mid-edit; Decimal coerces anything unparseable to zero.
type Input string

// Decimal parses the input with ParseDecimal.
func (in Input) Decimal() decimal.Decimal {
	return ParseDecimal(string(in))
}

// UnmarshalJSON accepts JSON strings, numbers and null. Other JSON kinds
// decode to an empty input rather than failing the whole payload.
func (in *Input) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*in = ""
		return nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		*in = ""
		return nil
	}
	*in = Input(n.String())
	return nil
}

// Magnitude bounds for parsed inputs. Values beyond them are treated as
// unparseable so that an exponent like "1e9999999" cannot blow up rounding.
const (
	MaxIntegerDigits  = 15
	MaxFractionDigits = 20
)

// ParseDecimal parses s as a decimal number. Empty, malformed, non-finite or
// out-of-range values yield exactly zero; it never fails. A trailing point, as
// in "12." while the user is still typing, is accepted.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsZero() || !InRange(d) {
		return decimal.Zero
	}
	return d
}

// InRange reports whether d has at most MaxIntegerDigits digits before the
// point and MaxFractionDigits after it.
func InRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -MaxFractionDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= MaxIntegerDigits
}
