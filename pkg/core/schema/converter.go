package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCell парсит строковое значение ячейки согласно типу колонки.
// Возвращает nil для NULL. Для текстовых типов пустая строка - валидное значение, НЕ NULL!
func ParseCell(raw string, t DataType) (any, error) {
	normalized := NormalizeType(t)

	if raw == "" && normalized != TypeText {
		return nil, nil
	}

	switch normalized {
	case TypeText:
		return raw, nil
	case TypeInteger:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, &CellError{Type: t, Value: raw, Message: "invalid integer value"}
		}
		return v, nil
	case TypeReal, TypeDecimal:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &CellError{Type: t, Value: raw, Message: "invalid float value"}
		}
		return v, nil
	case TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, &CellError{Type: t, Value: raw, Message: "boolean must be 0 or 1"}
	case TypeDate:
		v, err := time.Parse("2006-01-02", raw)
		if err != nil {
			// SQLite может вернуть дату в формате RFC3339
			v, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, &CellError{Type: t, Value: raw, Message: "invalid date format, expected YYYY-MM-DD"}
			}
			v = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		}
		return v, nil
	case TypeDatetime, TypeTimestamp:
		v, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &CellError{Type: t, Value: raw, Message: "invalid datetime format, expected RFC3339"}
		}
		if normalized == TypeTimestamp {
			v = v.UTC()
		}
		return v, nil
	default:
		return nil, &CellError{Type: t, Value: raw, Message: fmt.Sprintf("unsupported type: %s", t)}
	}
}

// FormatCell форматирует значение ячейки обратно в строку.
// NULL форматируется как пустая строка.
func FormatCell(v any, t DataType) string {
	if v == nil {
		return ""
	}
	if tm, ok := v.(time.Time); ok {
		switch NormalizeType(t) {
		case TypeDate:
			return tm.Format("2006-01-02")
		default:
			return tm.Format(time.RFC3339)
		}
	}
	if b, ok := v.(bool); ok && IsBooleanType(t) {
		if b {
			return "1"
		}
		return "0"
	}
	return FormatValue(v)
}

// FormatValue форматирует произвольное значение в текст без учета типа колонки
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// InferType определяет тип колонки по Go-типу значения (для табличных данных из БД).
// Это не вывод схемы по содержимому: строки всегда остаются TEXT.
func InferType(v any) DataType {
	switch v.(type) {
	case int, int32, int64:
		return TypeInteger
	case float32, float64:
		return TypeReal
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeTimestamp
	default:
		return TypeText
	}
}
