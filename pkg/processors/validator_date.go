package processors

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

const (
	rangeNone    = "none"
	rangeFixed   = "fixed"
	rangeRolling = "rolling"
)

// dateValidator - разбор даты по формату и необязательная проверка диапазона
type dateValidator struct {
	format     schema.DateFormat
	rangeCheck string
	fixedMin   time.Time
	fixedMax   time.Time
	rollingMin int
	rollingMax int
	unique     bool
}

func newDateValidator() Validator { return &dateValidator{} }

func (v *dateValidator) Fields() []Field {
	return []Field{
		Required("date_format", StringParam()),
		Optional("range_check", rangeNone, OneOf(rangeNone, rangeFixed, rangeRolling)),
		Optional("range_minimum", "", StringParam()),
		Optional("range_maximum", "", StringParam()),
		Optional("is_unique", false, BoolParam()),
	}
}

func (v *dateValidator) Bind(_ context.Context, r *Rule) error {
	format, err := schema.NewDateFormat(r.Params.String("date_format"))
	if err != nil {
		return invalidParam(r.Type, "date_format", r.Params.String("date_format"), err)
	}
	v.format = format
	v.unique = r.Params.Bool("is_unique")
	v.rangeCheck = r.Params.String("range_check")

	lo, hi := r.Params.String("range_minimum"), r.Params.String("range_maximum")
	switch v.rangeCheck {
	case rangeFixed:
		var ok bool
		if v.fixedMin, ok = format.Parse(lo); !ok {
			return crossError(r.Type, "range_minimum %q does not match date_format %s", lo, format.Source)
		}
		if v.fixedMax, ok = format.Parse(hi); !ok {
			return crossError(r.Type, "range_maximum %q does not match date_format %s", hi, format.Source)
		}
		if v.fixedMin.After(v.fixedMax) {
			return crossError(r.Type, "range_minimum %s is after range_maximum %s", lo, hi)
		}
	case rangeRolling:
		if v.rollingMin, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
			return crossError(r.Type, "range_minimum %q must be a whole number of days", lo)
		}
		if v.rollingMax, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return crossError(r.Type, "range_maximum %q must be a whole number of days", hi)
		}
		if v.rollingMin > v.rollingMax {
			return crossError(r.Type, "range_minimum %d is greater than range_maximum %d", v.rollingMin, v.rollingMax)
		}
	}
	return nil
}

// bounds возвращает границы диапазона на момент запуска
func (v *dateValidator) bounds(now time.Time) (time.Time, time.Time) {
	if v.rangeCheck == rangeFixed {
		return v.fixedMin, v.fixedMax
	}
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	lo := day.AddDate(0, 0, v.rollingMin)
	hi := day.AddDate(0, 0, v.rollingMax+1).Add(-time.Nanosecond)
	return lo, hi
}

func (v *dateValidator) Run(_ context.Context, r *Rule, t *table.Table, source, target string) error {
	if v.unique {
		r.dedupColumn(t, source)
	}

	var lo, hi time.Time
	if v.rangeCheck != rangeNone {
		lo, hi = v.bounds(r.Now())
	}

	col, _ := t.Column(source)
	out := make([]any, t.Len())
	accepted := newDistinctTexts()

	for i, raw := range col.Values {
		ts, ok := v.format.Parse(raw)
		if !ok {
			continue
		}
		if v.rangeCheck != rangeNone && (ts.Before(lo) || ts.After(hi)) {
			continue
		}
		out[i] = raw
		accepted.add(raw)
	}

	r.ReferenceList = accepted.values
	return addResult(t, target, col.Type, out)
}
