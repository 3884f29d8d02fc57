// Package format turns raw row values into the text substituted into
// templates.
package format

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/akannigil/oxygen-documentor-sub000/internal/dateutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// ErrInvalidNumber indicates a value that cannot be read as a number.
var ErrInvalidNumber = errors.New("invalid number")

// Text transforms.
const (
	Uppercase  = "uppercase"
	Lowercase  = "lowercase"
	Capitalize = "capitalize"
)

// Formatter formats values. The zero value uses dateutil.DefaultDateFormat.
type Formatter struct {
	// DefaultDateFormat is used for date values without an explicit format.
	DefaultDateFormat string
}

// Value renders v according to f. A nil value renders as the empty string.
// The value type is taken from f.Type when set, otherwise inferred from the
// format string and the Go type of v.
func (fm Formatter) Value(v any, f model.FieldFormat) (string, error) {
	if v == nil {
		return "", nil
	}

	switch resolveType(v, f) {
	case model.FieldDate:
		t, err := dateutil.ParseValue(v)
		if err != nil {
			return "", err
		}
		layout := f.Format
		if layout == "" {
			layout = fm.DefaultDateFormat
		}
		return dateutil.Format(t, layout)
	case model.FieldNumber:
		n, err := toFloat(v)
		if err != nil {
			return "", err
		}
		return formatNumber(n, f.Format), nil
	default:
		return transformText(toString(v), f.Format), nil
	}
}

func resolveType(v any, f model.FieldFormat) model.FieldType {
	if f.Type != "" {
		return f.Type
	}
	if f.Format != "" && dateutil.IsDateFormat(f.Format) {
		return model.FieldDate
	}
	if f.Format != "" && isNumberFormat(f.Format) {
		return model.FieldNumber
	}
	switch v.(type) {
	case time.Time, *time.Time:
		return model.FieldDate
	}
	return model.FieldText
}

// isNumberFormat matches formats such as "0", "0.00" or "#,##0.0".
func isNumberFormat(format string) bool {
	for _, r := range format {
		if r != '0' && r != '#' && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

// formatNumber infers the number of decimals from the digits after the
// decimal point in format. Without a format the shortest representation is used.
func formatNumber(n float64, format string) string {
	if format == "" {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	decimals := 0
	if idx := strings.IndexByte(format, '.'); idx >= 0 {
		decimals = len(format) - idx - 1
	}
	out := strconv.FormatFloat(roundTo(n, decimals), 'f', decimals, 64)
	if strings.Contains(format, ",") {
		out = groupThousands(out)
	}
	return out
}

func roundTo(n float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(n*p) / p
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, frac = s[:idx], s[idx:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidNumber, v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(v)
	}
}

func transformText(s, format string) string {
	switch strings.ToLower(format) {
	case Uppercase:
		return strings.ToUpper(s)
	case Lowercase:
		return strings.ToLower(s)
	case Capitalize:
		return capitalize(s)
	}
	return s
}

// capitalize upper-cases the first letter of every word.
func capitalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := true
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if start && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		start = unicode.IsSpace(r) || r == '-'
	}
	return b.String()
}
