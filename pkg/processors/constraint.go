package processors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// ParamType - тип значения параметра
type ParamType int

const (
	ParamAny ParamType = iota
	ParamString
	ParamInt
	ParamFloat
	ParamBool
	ParamList
)

// String - имя типа для сообщений об ошибках
func (t ParamType) String() string {
	switch t {
	case ParamString:
		return "string"
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamBool:
		return "bool"
	case ParamList:
		return "list"
	default:
		return "any"
	}
}

// ConstraintKind - вид ограничения (закрытый набор)
type ConstraintKind int

const (
	// KindTyped - приведение типа и необязательный предикат
	KindTyped ConstraintKind = iota
	// KindRange - числовые границы
	KindRange
	// KindRegex - строка соответствует шаблону
	KindRegex
	// KindOneOf - значение из набора (без учета регистра)
	KindOneOf
)

// Constraint - ограничение на значение параметра
type Constraint struct {
	Kind ConstraintKind
	Type ParamType

	// KindRange
	Min *float64
	Max *float64

	// KindRegex
	Pattern string

	// KindOneOf: допустимые канонические значения и синонимы
	Options []string
	Aliases map[string]string

	// KindTyped
	Check func(v any) error
}

// Typed - ограничение только по типу, check может быть nil
func Typed(t ParamType, check func(v any) error) Constraint {
	return Constraint{Kind: KindTyped, Type: t, Check: check}
}

// StringParam - произвольная строка
func StringParam() Constraint { return Typed(ParamString, nil) }

// BoolParam - логическое значение
func BoolParam() Constraint { return Typed(ParamBool, nil) }

// FloatParam - число с плавающей точкой
func FloatParam() Constraint { return Typed(ParamFloat, nil) }

// ListParam - список строк (YAML-последовательность или строка через запятую)
func ListParam() Constraint {
	return Typed(ParamList, func(v any) error {
		if len(v.([]string)) == 0 {
			return fmt.Errorf("list must not be empty")
		}
		return nil
	})
}

// IntRange - целое в границах [min, max]
func IntRange(min, max float64) Constraint {
	return Constraint{Kind: KindRange, Type: ParamInt, Min: &min, Max: &max}
}

// IntAtLeast - целое не меньше min
func IntAtLeast(min float64) Constraint {
	return Constraint{Kind: KindRange, Type: ParamInt, Min: &min}
}

// FloatRange - число в границах [min, max]
func FloatRange(min, max float64) Constraint {
	return Constraint{Kind: KindRange, Type: ParamFloat, Min: &min, Max: &max}
}

// FloatAtLeast - число не меньше min
func FloatAtLeast(min float64) Constraint {
	return Constraint{Kind: KindRange, Type: ParamFloat, Min: &min}
}

// Matches - строка, полностью соответствующая шаблону
func Matches(pattern string) Constraint {
	return Constraint{Kind: KindRegex, Type: ParamString, Pattern: pattern}
}

// OneOf - одно из значений, регистр и '-'/'_' не различаются
func OneOf(options ...string) Constraint {
	return Constraint{Kind: KindOneOf, Type: ParamString, Options: options}
}

// WithAliases - добавить синонимы для OneOf
func (c Constraint) WithAliases(aliases map[string]string) Constraint {
	c.Aliases = aliases
	return c
}

// Apply приводит значение к типу и проверяет ограничение.
// Возвращает каноническое значение.
func (c Constraint) Apply(v any) (any, error) {
	value, err := coerce(v, c.Type)
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case KindRange:
		f, _ := toFloat(value)
		if c.Min != nil && f < *c.Min {
			return nil, fmt.Errorf("must be >= %v", *c.Min)
		}
		if c.Max != nil && f > *c.Max {
			return nil, fmt.Errorf("must be <= %v", *c.Max)
		}
	case KindRegex:
		re, err := regexp2.Compile("^(?:"+c.Pattern+")$", 0)
		if err != nil {
			return nil, fmt.Errorf("bad constraint pattern: %w", err)
		}
		ok, err := re.MatchString(value.(string))
		if err != nil || !ok {
			return nil, fmt.Errorf("must match %s", c.Pattern)
		}
	case KindOneOf:
		key := canonicalOption(value.(string))
		for _, opt := range c.Options {
			if canonicalOption(opt) == key {
				return opt, nil
			}
		}
		for alias, opt := range c.Aliases {
			if canonicalOption(alias) == key {
				return opt, nil
			}
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(c.Options, ", "))
	}

	if c.Check != nil {
		if err := c.Check(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func canonicalOption(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// coerce приводит значение из YAML/JSON к типу параметра
func coerce(v any, t ParamType) (any, error) {
	if t == ParamAny {
		return v, nil
	}
	if v == nil {
		if t == ParamString {
			return "", nil
		}
		return nil, fmt.Errorf("expected %s, got null", t)
	}

	switch t {
	case ParamString:
		switch val := v.(type) {
		case string:
			return val, nil
		case int, int64, float64, bool:
			return fmt.Sprint(val), nil
		}
	case ParamInt:
		if f, ok := toFloat(v); ok {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("expected int, got %v", v)
			}
			return int(f), nil
		}
	case ParamFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case ParamBool:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true", "yes", "1", "on":
				return true, nil
			case "false", "no", "0", "off":
				return false, nil
			}
		case int:
			if val == 0 || val == 1 {
				return val == 1, nil
			}
		}
	case ParamList:
		switch val := v.(type) {
		case []string:
			return trimList(val), nil
		case []any:
			items := make([]string, len(val))
			for i, item := range val {
				items[i] = fmt.Sprint(item)
			}
			return trimList(items), nil
		case string:
			return trimList(strings.Split(val, ",")), nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
