package processors

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// regexTimeout - таймаут одного сопоставления; превышение считается несовпадением
const regexTimeout = 500 * time.Millisecond

// stringValidator - длина в символах и регулярное выражение
type stringValidator struct {
	minLength int
	maxLength int
	re        *regexp2.Regexp
	unique    bool
	strip     bool
}

func newStringValidator() Validator { return &stringValidator{} }

func (v *stringValidator) Fields() []Field {
	return []Field{
		Required("minimum_length", IntAtLeast(0)),
		Required("maximum_length", IntAtLeast(0)),
		Optional("regex", ".*", StringParam()),
		Optional("is_unique", false, BoolParam()),
		Optional("strip", false, BoolParam()),
	}
}

func (v *stringValidator) Bind(_ context.Context, r *Rule) error {
	v.minLength = r.Params.Int("minimum_length")
	v.maxLength = r.Params.Int("maximum_length")
	if v.minLength > v.maxLength {
		return crossError(r.Type, "minimum_length %d is greater than maximum_length %d", v.minLength, v.maxLength)
	}

	pattern := r.Params.String("regex")
	re, err := regexp2.Compile("^(?:"+pattern+")$", regexp2.None)
	if err != nil {
		return invalidParam(r.Type, "regex", pattern, err)
	}
	re.MatchTimeout = regexTimeout
	v.re = re

	v.unique = r.Params.Bool("is_unique")
	v.strip = r.Params.Bool("strip")
	return nil
}

func (v *stringValidator) match(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < v.minLength || n > v.maxLength {
		return false
	}
	ok, err := v.re.MatchString(s)
	return err == nil && ok
}

func (v *stringValidator) Run(_ context.Context, r *Rule, t *table.Table, source, target string) error {
	if v.unique {
		r.dedupColumn(t, source)
	}

	col, _ := t.Column(source)
	out := make([]any, t.Len())
	accepted := newDistinctTexts()
	var stripped []int

	for i, raw := range col.Values {
		if raw == nil {
			continue
		}
		s := table.Text(raw)
		changed := false
		if v.strip {
			if trimmed := strings.TrimSpace(s); trimmed != s {
				s, changed = trimmed, true
			}
		}
		if !v.match(s) {
			continue
		}
		out[i] = s
		accepted.add(s)
		if changed {
			stripped = append(stripped, i)
		}
	}

	r.logRows(t, stripped, audit.CategoryModified, "whitespace stripped")
	r.ReferenceList = accepted.values
	return addResult(t, target, schema.TypeText, out)
}
