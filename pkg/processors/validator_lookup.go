package processors

import (
	"context"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// lookupValidator - сверка со справочником (белый или черный список)
type lookupValidator struct {
	reference []string
	known     map[string]bool
	blacklist bool
}

func newLookupValidator() Validator { return &lookupValidator{} }

func (v *lookupValidator) Fields() []Field {
	return []Field{
		Required("original_reference", StringParam()),
		Required("reference_field", StringParam()),
		Optional("blacklist", false, BoolParam()),
	}
}

// Bind загружает справочник. Отсутствие таблицы или поля - ConfigReferenceError.
func (v *lookupValidator) Bind(ctx context.Context, r *Rule) error {
	name := r.Params.String("original_reference")
	if r.References == nil {
		return &ConfigReferenceError{RuleType: r.Type, Reference: name, Message: "no reference provider configured"}
	}

	ref, err := r.References.Table(ctx, name)
	if err != nil {
		return &ConfigReferenceError{RuleType: r.Type, Reference: name, Message: "reference table not available", Err: err}
	}

	field, ok := ref.ResolveField(r.Params.String("reference_field"))
	if !ok {
		return missingField(r.Type, name+"."+field)
	}

	col, _ := ref.Column(field)
	values := newDistinctTexts()
	for _, val := range col.Values {
		values.add(val)
	}

	v.reference = values.values
	v.known = values.seen
	v.blacklist = r.Params.Bool("blacklist")
	if !v.blacklist {
		r.ReferenceList = v.reference
	}
	return nil
}

func (v *lookupValidator) Run(_ context.Context, r *Rule, t *table.Table, source, target string) error {
	col, _ := t.Column(source)
	out := make([]any, t.Len())

	if v.blacklist {
		surviving := newDistinctTexts()
		for i, raw := range col.Values {
			if raw == nil || v.known[table.Text(raw)] {
				continue
			}
			out[i] = raw
			surviving.add(raw)
		}
		r.ReferenceList = surviving.values
	} else {
		for i, raw := range col.Values {
			if raw == nil {
				continue
			}
			// совпадение точное по тексту, значение сохраняет тип колонки
			if v.known[table.Text(raw)] {
				out[i] = raw
			}
		}
		r.ReferenceList = v.reference
	}

	return addResult(t, target, col.Type, out)
}
