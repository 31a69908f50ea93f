package processors

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

var decimalText = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// numberValidator - количество знаков после запятой и диапазон значений
type numberValidator struct {
	places int32
	min    decimal.Decimal
	max    decimal.Decimal
	fix    bool
	unique bool
}

func newNumberValidator() Validator { return &numberValidator{} }

func (v *numberValidator) Fields() []Field {
	return []Field{
		Required("decimal_places", IntRange(0, 15)),
		Required("minimum_value", FloatParam()),
		Required("maximum_value", FloatParam()),
		Optional("fix_decimal_places", false, BoolParam()),
		Optional("is_unique", false, BoolParam()),
	}
}

func (v *numberValidator) Bind(_ context.Context, r *Rule) error {
	v.places = int32(r.Params.Int("decimal_places"))
	v.min = decimal.NewFromFloat(r.Params.Float("minimum_value"))
	v.max = decimal.NewFromFloat(r.Params.Float("maximum_value"))
	if v.min.GreaterThan(v.max) {
		return crossError(r.Type, "minimum_value %s is greater than maximum_value %s", v.min, v.max)
	}
	v.fix = r.Params.Bool("fix_decimal_places")
	v.unique = r.Params.Bool("is_unique")
	return nil
}

// check возвращает принятое значение и признак исправления
func (v *numberValidator) check(raw any) (any, bool, bool) {
	var d decimal.Decimal
	switch val := raw.(type) {
	case int:
		return raw, false, v.inRange(decimal.NewFromInt(int64(val)))
	case int64:
		return raw, false, v.inRange(decimal.NewFromInt(val))
	case float32:
		d = decimal.NewFromFloat32(val)
	case float64:
		d = decimal.NewFromFloat(val)
	case string:
		return v.checkText(val)
	default:
		return v.checkText(table.Text(raw))
	}

	fixed := false
	if rounded := d.Round(v.places); !rounded.Equal(d) {
		if !v.fix {
			return nil, false, false
		}
		d, fixed = rounded, true
	}
	if !v.inRange(d) {
		return nil, false, false
	}
	if fixed {
		return d.InexactFloat64(), true, true
	}
	return raw, false, true
}

func (v *numberValidator) checkText(raw string) (any, bool, bool) {
	s := strings.TrimSpace(raw)
	if !decimalText.MatchString(s) {
		return nil, false, false
	}

	parse := s
	if strings.HasSuffix(parse, ".") {
		parse += "0"
	}
	d, err := decimal.NewFromString(parse)
	if err != nil {
		return nil, false, false
	}

	places := 0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		places = len(s) - i - 1
	}

	out, fixed := raw, false
	if places > int(v.places) {
		if !v.fix {
			return nil, false, false
		}
		d = d.Round(v.places)
		out, fixed = d.StringFixed(v.places), true
	}
	if !v.inRange(d) {
		return nil, false, false
	}
	return out, fixed, true
}

func (v *numberValidator) inRange(d decimal.Decimal) bool {
	return !d.LessThan(v.min) && !d.GreaterThan(v.max)
}

func (v *numberValidator) Run(_ context.Context, r *Rule, t *table.Table, source, target string) error {
	if v.unique {
		r.dedupColumn(t, source)
	}

	col, _ := t.Column(source)
	out := make([]any, t.Len())
	accepted := newDistinctTexts()
	var fixed []int

	for i, raw := range col.Values {
		if table.IsBlank(raw) {
			continue
		}
		value, changed, ok := v.check(raw)
		if !ok {
			continue
		}
		out[i] = value
		accepted.add(value)
		if changed {
			fixed = append(fixed, i)
		}
	}

	r.logRows(t, fixed, audit.CategoryModified, "decimal places fixed")
	r.ReferenceList = accepted.values
	return addResult(t, target, col.Type, out)
}
