package processors

import (
	"fmt"
	"sort"
)

// Field - запись реестра параметров: имя, значение по умолчанию и ограничение
type Field struct {
	Name       string
	Default    any
	HasDefault bool
	Constraint Constraint
}

// Required - параметр без значения по умолчанию
func Required(name string, c Constraint) Field {
	return Field{Name: name, Constraint: c}
}

// Optional - параметр со значением по умолчанию
func Optional(name string, def any, c Constraint) Field {
	return Field{Name: name, Default: def, HasDefault: true, Constraint: c}
}

// Registry - объединенный реестр параметров валидатора и его стадий
type Registry struct {
	fields []Field
	index  map[string]int
}

// NewRegistry объединяет группы полей. Повтор имени - ошибка программиста (panic).
func NewRegistry(groups ...[]Field) *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, group := range groups {
		for _, f := range group {
			if _, dup := r.index[f.Name]; dup {
				panic(fmt.Sprintf("processors: param %q registered twice", f.Name))
			}
			r.index[f.Name] = len(r.fields)
			r.fields = append(r.fields, f)
		}
	}
	return r
}

// Lookup возвращает запись по имени
func (r *Registry) Lookup(name string) (Field, bool) {
	i, ok := r.index[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Fields возвращает записи в порядке регистрации
func (r *Registry) Fields() []Field {
	return r.fields
}

// Resolve проверяет карту параметров по реестру:
// неизвестные ключи, отсутствующие обязательные, значения по ограничениям.
func (r *Registry) Resolve(ruleType string, raw map[string]any) (Params, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := r.index[k]; !ok {
			return Params{}, unknownParam(ruleType, k)
		}
	}

	values := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		v, supplied := raw[f.Name]
		if !supplied {
			if !f.HasDefault {
				return Params{}, missingParam(ruleType, f.Name)
			}
			values[f.Name] = f.Default
			continue
		}

		resolved, err := f.Constraint.Apply(v)
		if err != nil {
			return Params{}, invalidParam(ruleType, f.Name, v, err)
		}
		values[f.Name] = resolved
	}

	return Params{values: values}, nil
}

// Params - разрешенные значения параметров правила
type Params struct {
	values map[string]any
}

// NewParams создает Params из готовых значений (для тестов и программной сборки)
func NewParams(values map[string]any) Params {
	return Params{values: values}
}

// Has проверяет, зарегистрирован ли параметр
func (p Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Raw возвращает значение как есть
func (p Params) Raw(name string) any {
	return p.values[name]
}

// String возвращает строковый параметр
func (p Params) String(name string) string {
	s, _ := p.values[name].(string)
	return s
}

// Int возвращает целый параметр
func (p Params) Int(name string) int {
	switch v := p.values[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float возвращает числовой параметр
func (p Params) Float(name string) float64 {
	f, _ := toFloat(p.values[name])
	return f
}

// Bool возвращает логический параметр
func (p Params) Bool(name string) bool {
	b, _ := p.values[name].(bool)
	return b
}

// List возвращает список строк
func (p Params) List(name string) []string {
	l, _ := p.values[name].([]string)
	return l
}

// Map возвращает копию всех значений
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
