package processors

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Definition описывает тип правила: конструктор валидатора и наборы стадий
type Definition struct {
	New         func() Validator
	Pre         func() []Stage
	Post        func() []Stage
	MultiColumn bool
}

// Factory создает правила по rule_type
type Factory struct {
	defs map[string]Definition
}

// NewFactory создает фабрику со встроенными типами правил
func NewFactory() *Factory {
	f := &Factory{defs: make(map[string]Definition)}

	f.Register("String", Definition{New: newStringValidator, Pre: columnPreStages, Post: columnPostStages})
	f.Register("Number", Definition{New: newNumberValidator, Pre: columnPreStages, Post: columnPostStages})
	f.Register("Date", Definition{New: newDateValidator, Pre: columnPreStages, Post: columnPostStages})
	f.Register("Lookup", Definition{New: newLookupValidator, Pre: columnPreStages, Post: columnPostStages})
	f.Register("Uniqueness", Definition{New: newUniquenessValidator, MultiColumn: true})
	f.Register("Session", Definition{New: newSessionValidator, MultiColumn: true})

	return f
}

// columnPreStages - стадии до преобразования колоночных правил
func columnPreStages() []Stage {
	return []Stage{&decryptStage{}}
}

// columnPostStages - стадии после преобразования в фиксированном порядке
func columnPostStages() []Stage {
	return []Stage{
		&skipBlankStage{},
		&bestMatchStage{},
		&lookalikeStage{},
		&fallbackStage{},
		&hashStage{},
		&encryptStage{},
	}
}

// Register регистрирует тип правила
func (f *Factory) Register(ruleType string, def Definition) {
	f.defs[ruleType] = def
}

// Types возвращает зарегистрированные типы правил
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.defs))
	for t := range f.defs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// lookup ищет тип правила, регистр не учитывается
func (f *Factory) lookup(ruleType string) (string, Definition, bool) {
	if def, ok := f.defs[ruleType]; ok {
		return ruleType, def, true
	}
	for name, def := range f.defs {
		if strings.EqualFold(name, ruleType) {
			return name, def, true
		}
	}
	return "", Definition{}, false
}

// NewRule строит правило: проверяет параметры по реестру, затем
// перекрестные проверки валидатора и стадий. Таблица не затрагивается.
func (f *Factory) NewRule(ctx context.Context, spec RuleSpec, deps Deps) (*Rule, error) {
	name, def, ok := f.lookup(spec.RuleType)
	if !ok {
		return nil, &ConfigValidationError{
			RuleType: spec.RuleType,
			Message:  fmt.Sprintf("unknown rule_type %q (known: %s)", spec.RuleType, strings.Join(f.Types(), ", ")),
		}
	}

	if def.MultiColumn && spec.Field != nil {
		return nil, crossError(name, "field must be null")
	}
	if !def.MultiColumn && spec.FieldName() == "" {
		return nil, crossError(name, "field must be set")
	}

	v := def.New()
	var pre, post []Stage
	if def.Pre != nil {
		pre = def.Pre()
	}
	if def.Post != nil {
		post = def.Post()
	}

	groups := [][]Field{v.Fields()}
	for _, s := range pre {
		groups = append(groups, s.Fields())
	}
	for _, s := range post {
		groups = append(groups, s.Fields())
	}

	params, err := NewRegistry(groups...).Resolve(name, spec.Params)
	if err != nil {
		return nil, err
	}

	deps = deps.withDefaults()
	r := &Rule{
		Type:          name,
		Field:         spec.FieldName(),
		AppendResults: spec.AppendResults,
		Params:        params,
		Log:           deps.Log,
		Profile:       deps.Profile,
		References:    deps.References,
		Logger:        deps.Logger.With(zapRule(name, spec.FieldName())...),
		Now:           deps.Now,
		validator:     v,
		pre:           pre,
		post:          post,
		multi:         def.MultiColumn,
	}

	if err := v.Bind(ctx, r); err != nil {
		return nil, err
	}
	for _, s := range pre {
		if err := s.Bind(ctx, r); err != nil {
			return nil, err
		}
	}
	for _, s := range post {
		if err := s.Bind(ctx, r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Build строит все правила до выполнения первого из них
func (f *Factory) Build(ctx context.Context, specs []RuleSpec, deps Deps) (*Chain, error) {
	chain := NewChain()

	for i, spec := range specs {
		rule, err := f.NewRule(ctx, spec, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create rule %d: %w", i, err)
		}
		chain.Add(rule)
	}

	return chain, nil
}

// DefaultFactory - фабрика со всеми встроенными типами правил
var DefaultFactory = NewFactory()

// NewRule строит правило через DefaultFactory
func NewRule(ctx context.Context, spec RuleSpec, deps Deps) (*Rule, error) {
	return DefaultFactory.NewRule(ctx, spec, deps)
}

// BuildChain строит цепочку правил через DefaultFactory
func BuildChain(ctx context.Context, specs []RuleSpec, deps Deps) (*Chain, error) {
	return DefaultFactory.Build(ctx, specs, deps)
}
