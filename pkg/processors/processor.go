package processors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// Validator - основное преобразование правила.
// Колоночные валидаторы читают source и добавляют в таблицу новую колонку target.
// Многоколоночные (Uniqueness, Session) получают пустые source и target и работают с таблицей целиком.
type Validator interface {
	// Fields возвращает собственные параметры валидатора
	Fields() []Field

	// Bind выполняет перекрестную проверку параметров и подготовку (справочники, регулярные выражения).
	// Таблица в этот момент не изменяется.
	Bind(ctx context.Context, r *Rule) error

	// Run выполняет преобразование
	Run(ctx context.Context, r *Rule, t *table.Table, source, target string) error
}

// Stage - дополнительная стадия до или после основного преобразования
type Stage interface {
	// Name возвращает имя стадии
	Name() string

	// Fields возвращает параметры, которые стадия добавляет в реестр правила
	Fields() []Field

	// Bind выполняет перекрестную проверку параметров стадии
	Bind(ctx context.Context, r *Rule) error

	// Run обрабатывает колонку column; original - исходная колонка поля
	Run(ctx context.Context, r *Rule, t *table.Table, column, original string) error
}

// ReferenceProvider выдает именованные таблицы-справочники для Lookup
type ReferenceProvider interface {
	Table(ctx context.Context, name string) (*table.Table, error)
}

// RuleSpec - описание правила в конфигурации прогона
type RuleSpec struct {
	RuleType      string         `yaml:"rule_type" json:"rule_type"`
	Field         *string        `yaml:"field" json:"field"`
	Params        map[string]any `yaml:"params" json:"params"`
	AppendResults bool           `yaml:"append_results" json:"append_results"`
}

// FieldName возвращает поле правила или пустую строку
func (s RuleSpec) FieldName() string {
	if s.Field == nil {
		return ""
	}
	return *s.Field
}

// Deps - внешние зависимости правила
type Deps struct {
	Log        audit.Logger
	Profile    Profile
	References ReferenceProvider
	Logger     *zap.Logger
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = audit.NewNullLogger()
	}
	if d.Profile == (Profile{}) {
		d.Profile = DefaultProfile()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}
