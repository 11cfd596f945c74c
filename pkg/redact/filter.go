package redact

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type Category string

const (
	CategoryPassword   Category = "PASSWORD"
	CategoryAPIKey     Category = "API_KEY"
	CategorySecret     Category = "SECRET"
	CategoryCreditCard Category = "CREDIT_CARD"
	CategorySSN        Category = "SSN"
	CategoryPrivateKey Category = "PRIVATE_KEY"
)

const placeholderPrefix = "[REDACTED_"

// Placeholder returns the replacement text for a category.
func Placeholder(c Category) string {
	return placeholderPrefix + string(c) + "]"
}

// Options toggles the heuristic parts of the filter.
type Options struct {
	// LuhnCheck only redacts card-shaped digit runs that pass the Luhn checksum.
	LuhnCheck bool
	// BareSSN also redacts bare 9-digit runs, not just ddd-dd-dddd.
	BareSSN bool
}

func DefaultOptions() Options {
	return Options{LuhnCheck: true, BareSSN: true}
}

type rule struct {
	category Category
	re       *regexp.Regexp
	group    int // submatch holding the sensitive value
	accept   func(value string) bool
}

// Filter masks sensitive values in free text. It is safe for concurrent use.
type Filter struct {
	rules []rule
}

// keyed matches "<key><separators><value>" and keeps the key.
func keyed(category Category, key string) rule {
	return rule{
		category: category,
		re:       regexp.MustCompile(`(?i)(` + key + `["\s:=]+)([^\s,}\]]+)`),
		group:    2,
	}
}

func bare(category Category, expr string) rule {
	return rule{category: category, re: regexp.MustCompile(`(?i)(` + expr + `)`), group: 1}
}

func New(opts Options) *Filter {
	card := func(value string) bool { return true }
	if opts.LuhnCheck {
		card = luhnValid
	}

	rules := []rule{
		bare(CategoryPrivateKey, `-----BEGIN\s+(?:RSA\s+|ENCRYPTED\s+)?PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA\s+|ENCRYPTED\s+)?PRIVATE\s+KEY-----`),
		bare(CategoryPrivateKey, `-----BEGIN\s+(?:RSA\s+)?PRIVATE\s+KEY-----`),
		bare(CategoryPrivateKey, `-----BEGIN\s+ENCRYPTED\s+PRIVATE\s+KEY-----`),

		keyed(CategoryPassword, `password`),
		keyed(CategoryPassword, `pwd`),
		keyed(CategoryPassword, `pass`),

		keyed(CategoryAPIKey, `api[_-]?key`),
		keyed(CategoryAPIKey, `apikey`),
		keyed(CategoryAPIKey, `access[_-]?token`),

		keyed(CategorySecret, `client[_-]?secret`),
		keyed(CategorySecret, `secret`),
	}

	cardSeparated := bare(CategoryCreditCard, `\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	cardSeparated.accept = card
	cardBare := bare(CategoryCreditCard, `\b\d{13,19}\b`)
	cardBare.accept = card
	rules = append(rules, cardSeparated, cardBare)

	rules = append(rules, bare(CategorySSN, `\b\d{3}-\d{2}-\d{4}\b`))
	if opts.BareSSN {
		rules = append(rules, bare(CategorySSN, `\b\d{9}\b`))
	}

	return &Filter{rules: rules}
}

// Text masks every sensitive value in s. Already-masked values are left
// alone, so Text(Text(s)) == Text(s).
func (f *Filter) Text(s string) string {
	if s == "" {
		return s
	}
	for _, r := range f.rules {
		s = r.apply(s)
	}
	return s
}

func (r rule) apply(s string) string {
	matches := r.re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	placeholder := Placeholder(r.category)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2*r.group], m[2*r.group+1]
		if start < 0 {
			continue
		}
		value := s[start:end]
		if strings.HasPrefix(value, placeholderPrefix) {
			continue
		}
		if r.accept != nil && !r.accept(value) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(placeholder)
		last = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// luhnValid checks the digits of value (separators ignored).
func luhnValid(value string) bool {
	sum, n := 0, 0
	double := false
	for i := len(value) - 1; i >= 0; i-- {
		c := value[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		n++
	}
	return n >= 13 && sum%10 == 0
}

// Items returns redacted copies of items. The fields scanned depend on the
// data type; other types are returned unchanged.
func (f *Filter) Items(items []types.Item, dataType types.DataType) []types.Item {
	fields, ok := fieldsByType[dataType]
	if !ok {
		return items
	}

	out := make([]types.Item, len(items))
	for i, item := range items {
		out[i] = f.item(item, fields)
	}
	return out
}

type fieldSet struct {
	strings []string
	nested  map[string][]string // list field -> string fields of each element
}

var fieldsByType = map[types.DataType]fieldSet{
	types.DataTypeEmail: {
		strings: []string{"subject", "body", "snippet"},
		nested:  map[string][]string{"headers": {"value"}},
	},
	types.DataTypeMessage: {
		strings: []string{"text", "content"},
		nested:  map[string][]string{"attachments": {"text", "title"}},
	},
	types.DataTypeEvent: {
		strings: []string{"summary", "description", "location"},
	},
	types.DataTypeDocument: {
		strings: []string{"content", "text", "content_preview"},
	},
}

func (f *Filter) item(item types.Item, fields fieldSet) types.Item {
	if item == nil {
		return nil
	}

	cp := make(types.Item, len(item))
	for k, v := range item {
		cp[k] = v
	}

	for _, key := range fields.strings {
		if s, ok := cp[key].(string); ok {
			cp[key] = f.Text(s)
		}
	}

	for key, sub := range fields.nested {
		switch list := cp[key].(type) {
		case []any:
			redacted := make([]any, len(list))
			for i, el := range list {
				if m, ok := el.(map[string]any); ok {
					redacted[i] = f.item(m, fieldSet{strings: sub})
				} else {
					redacted[i] = el
				}
			}
			cp[key] = redacted
		case []map[string]any:
			redacted := make([]map[string]any, len(list))
			for i, m := range list {
				redacted[i] = f.item(m, fieldSet{strings: sub})
			}
			cp[key] = redacted
		}
	}

	return cp
}

// Value returns a copy of v with every string inside it masked. Maps and
// slices are walked recursively. Other composite values (SDK structs, typed
// maps) are walked through their JSON form.
func (f *Filter) Value(v any) any {
	switch t := v.(type) {
	case string:
		return f.Text(t)
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, el := range t {
			cp[k] = f.Value(el)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, el := range t {
			cp[i] = f.Value(el)
		}
		return cp
	case []string:
		cp := make([]string, len(t))
		for i, el := range t {
			cp[i] = f.Text(el)
		}
		return cp
	case []map[string]any:
		cp := make([]map[string]any, len(t))
		for i, el := range t {
			cp[i] = f.Value(el).(map[string]any)
		}
		return cp
	case nil, bool, int, int32, int64, float32, float64, json.Number:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return v
		}
		return f.Value(generic)
	}
}

// Actions returns copies of actions with their result payloads, descriptions
// and error text masked.
func (f *Filter) Actions(actions []types.ActionResult) []types.ActionResult {
	out := make([]types.ActionResult, len(actions))
	for i, a := range actions {
		if a.Result != nil {
			a.Result = f.Value(a.Result).(map[string]any)
		}
		a.Description = f.Text(a.Description)
		a.Error = f.Text(a.Error)
		out[i] = a
	}
	return out
}
