package processors

import (
	"context"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// uniquenessValidator удаляет повторы по набору полей
type uniquenessValidator struct {
	fields  []string
	useLast bool
}

func newUniquenessValidator() Validator { return &uniquenessValidator{} }

func (v *uniquenessValidator) Fields() []Field {
	return []Field{
		Required("unique_fields", ListParam()),
		Optional("use_last_value", false, BoolParam()),
	}
}

func (v *uniquenessValidator) Bind(_ context.Context, r *Rule) error {
	v.fields = r.Params.List("unique_fields")
	v.useLast = r.Params.Bool("use_last_value")
	return nil
}

func (v *uniquenessValidator) Run(_ context.Context, r *Rule, t *table.Table, _, _ string) error {
	cols := make([]*table.Column, len(v.fields))
	for i, ref := range v.fields {
		name, ok := t.ResolveField(ref)
		if !ok {
			return missingField(r.Type, ref)
		}
		cols[i], _ = t.Column(name)
	}

	key := func(pos int) string {
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = c.Values[pos]
		}
		return table.Key(values...)
	}

	seen := make(map[string]bool, t.Len())
	var dups []int
	if v.useLast {
		for pos := t.Len() - 1; pos >= 0; pos-- {
			k := key(pos)
			if seen[k] {
				dups = append(dups, pos)
			}
			seen[k] = true
		}
		for i, j := 0, len(dups)-1; i < j; i, j = i+1, j-1 {
			dups[i], dups[j] = dups[j], dups[i]
		}
	} else {
		for pos := 0; pos < t.Len(); pos++ {
			k := key(pos)
			if seen[k] {
				dups = append(dups, pos)
			}
			seen[k] = true
		}
	}

	r.logRows(t, dups, audit.CategoryRemoved, "duplicate records")
	t.RemoveRows(dups)
	return nil
}
