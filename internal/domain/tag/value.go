package tag

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the French date format used in rendered documents
const DateLayout = "02/01/2006"

// Value is a rendering-ready tag value. The set of implementations is closed.
type Value interface {
	// String renders the value as it appears in the document
	String() string
	// Kind returns the declared tag type this value was built for
	Kind() Type
	isValue()
}

type TextValue struct {
	Text string
}

type DateValue struct {
	Time time.Time
	// Raw keeps unparsable input so it is still rendered verbatim
	Raw string
}

type MoneyValue struct {
	Amount   decimal.Decimal
	Set      bool
	Currency string
}

type NumberValue struct {
	Number decimal.Decimal
	Set    bool
}

type ListValue struct {
	Items []string
}

type ConditionalValue struct {
	Present bool
	Text    string
}

type ImageValue struct {
	Ref string
}

func (TextValue) isValue()        {}
func (DateValue) isValue()        {}
func (MoneyValue) isValue()       {}
func (NumberValue) isValue()      {}
func (ListValue) isValue()        {}
func (ConditionalValue) isValue() {}
func (ImageValue) isValue()       {}

func (TextValue) Kind() Type        { return TypeText }
func (DateValue) Kind() Type        { return TypeDate }
func (MoneyValue) Kind() Type       { return TypeMoney }
func (NumberValue) Kind() Type      { return TypeNumber }
func (ListValue) Kind() Type        { return TypeList }
func (ConditionalValue) Kind() Type { return TypeConditional }
func (ImageValue) Kind() Type       { return TypeImage }

func (v TextValue) String() string { return v.Text }

func (v DateValue) String() string {
	if v.Time.IsZero() {
		return v.Raw
	}
	return v.Time.Format(DateLayout)
}

func (v MoneyValue) String() string {
	if !v.Set {
		return ""
	}
	currency := v.Currency
	if currency == "" {
		currency = "€"
	}
	return formatFrench(v.Amount.StringFixed(2)) + " " + currency
}

func (v NumberValue) String() string {
	if !v.Set {
		return ""
	}
	return strings.Replace(v.Number.String(), ".", ",", 1)
}

func (v ListValue) String() string {
	if len(v.Items) == 0 {
		return ""
	}
	lines := make([]string, len(v.Items))
	for i, item := range v.Items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

func (v ConditionalValue) String() string {
	if !v.Present {
		return ""
	}
	return v.Text
}

func (v ImageValue) String() string { return v.Ref }

// NewValue converts raw provider data into the variant declared by def.
// A nil raw value yields the empty variant, which renders as "".
func NewValue(def Definition, raw interface{}) Value {
	switch def.Type {
	case TypeDate:
		return newDate(raw)
	case TypeMoney:
		d, ok := toDecimal(raw)
		return MoneyValue{Amount: d, Set: ok}
	case TypeNumber:
		d, ok := toDecimal(raw)
		return NumberValue{Number: d, Set: ok}
	case TypeList:
		return ListValue{Items: toList(raw)}
	case TypeConditional:
		present := toBool(raw)
		text := def.Label
		if s, ok := raw.(string); ok && !isBoolString(s) {
			text = s
		}
		return ConditionalValue{Present: present, Text: text}
	case TypeImage:
		return ImageValue{Ref: toText(raw)}
	default:
		return TextValue{Text: toText(raw)}
	}
}

// Values maps tag names to resolved values
type Values map[string]Value

// Strings flattens the values into the key/value map handed to the renderer
func (v Values) Strings() map[string]string {
	out := make(map[string]string, len(v))
	for name, val := range v {
		if val == nil {
			out[name] = ""
			continue
		}
		out[name] = val.String()
	}
	return out
}

// Merge copies other into v, overwriting existing entries
func (v Values) Merge(other Values) {
	for name, val := range other {
		v[name] = val
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	DateLayout,
}

func newDate(raw interface{}) DateValue {
	switch t := raw.(type) {
	case nil:
		return DateValue{}
	case time.Time:
		return DateValue{Time: t}
	case *time.Time:
		if t == nil {
			return DateValue{}
		}
		return DateValue{Time: *t}
	}

	s := strings.TrimSpace(toText(raw))
	if s == "" {
		return DateValue{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateValue{Time: t}
		}
	}
	return DateValue{Raw: s}
}

func toText(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(DateLayout)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	}

	s := strings.TrimSpace(toText(raw))
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func toList(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s := toText(item); s != "" {
				items = append(items, s)
			}
		}
		return items
	}

	s := toText(raw)
	if s == "" {
		return nil
	}
	var items []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items
}

func toBool(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	}

	s := strings.TrimSpace(toText(raw))
	if isBoolString(s) {
		b, _ := strconv.ParseBool(strings.ToLower(s))
		return b
	}
	return s != ""
}

func isBoolString(s string) bool {
	_, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	return err == nil
}

// formatFrench groups thousands with spaces and uses a decimal comma ("1234.50" -> "1 234,50")
func formatFrench(fixed string) string {
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, fracPart = fixed[:i], fixed[i+1:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
