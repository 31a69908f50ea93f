package processors

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// Chain - упорядоченный набор правил. Удаление строк одним правилом
// видно всем последующим, поэтому порядок значим.
type Chain struct {
	rules []*Rule
}

// NewChain создает цепочку правил
func NewChain(rules ...*Rule) *Chain {
	return &Chain{rules: rules}
}

// Run выполняет правила последовательно
func (c *Chain) Run(ctx context.Context, t *table.Table) error {
	for i, rule := range c.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		rule.Logger.Debug("running rule", zap.Int("index", i), zap.Int("rows", t.Len()))
		if err := rule.RunAll(ctx, t); err != nil {
			return fmt.Errorf("rule %d (%s) failed: %w", i, rule.Type, err)
		}
	}
	return nil
}

// Add добавляет правило в цепочку
func (c *Chain) Add(rule *Rule) {
	c.rules = append(c.rules, rule)
}

// Rules возвращает правила цепочки
func (c *Chain) Rules() []*Rule {
	return c.rules
}

// Len возвращает количество правил
func (c *Chain) Len() int {
	return len(c.rules)
}

// IsEmpty проверяет, пуста ли цепочка
func (c *Chain) IsEmpty() bool {
	return len(c.rules) == 0
}

func zapRule(ruleType, field string) []zap.Field {
	fields := []zap.Field{zap.String("rule_type", ruleType)}
	if field != "" {
		fields = append(fields, zap.String("field", field))
	}
	return fields
}
