package table

import (
	"strings"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
)

// IsNull проверяет NULL
func IsNull(v any) bool {
	return v == nil
}

// IsBlank - NULL или строка из одних пробелов
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Text возвращает текстовое представление значения, NULL -> ""
func Text(v any) string {
	return schema.FormatValue(v)
}

// Key строит ключ сравнения значений нескольких колонок строки.
// NULL отличается от пустой строки.
func Key(values ...any) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		if v == nil {
			b.WriteByte(0x00)
			continue
		}
		b.WriteString(Text(v))
	}
	return b.String()
}

// NullPositions возвращает позиции строк с NULL в колонке
func NullPositions(c *Column) []int {
	var out []int
	for i, v := range c.Values {
		if v == nil {
			out = append(out, i)
		}
	}
	return out
}
