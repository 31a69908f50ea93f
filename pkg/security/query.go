// Package security - проверка SQL запросов справочников: разрешено только чтение.
package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnsafeQuery - запрос справочника не является одиночным SELECT/WITH
var ErrUnsafeQuery = errors.New("unsafe reference query")

// forbidden - ключевые слова, изменяющие данные, схему или состояние сессии
var forbidden = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "TRUNCATE": true, "MERGE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "RENAME": true,
	"GRANT": true, "REVOKE": true,
	"EXECUTE": true, "EXEC": true, "CALL": true,
	"PRAGMA": true, "ATTACH": true, "DETACH": true, "VACUUM": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true,
	"INTO": true,
}

// ValidateQuery проверяет, что запрос только читает данные:
// начинается с SELECT или WITH, не содержит изменяющих ключевых слов вне
// строковых литералов, комментариев и нескольких команд.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", ErrUnsafeQuery)
	}

	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return fmt.Errorf("%w: comments are not allowed", ErrUnsafeQuery)
	}

	code, err := stripLiterals(trimmed)
	if err != nil {
		return err
	}

	code = strings.TrimSuffix(strings.TrimSpace(code), ";")
	if strings.Contains(code, ";") {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrUnsafeQuery)
	}

	words := strings.FieldsFunc(strings.ToUpper(code), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(words) == 0 || (words[0] != "SELECT" && words[0] != "WITH") {
		return fmt.Errorf("%w: only SELECT and WITH queries are allowed", ErrUnsafeQuery)
	}
	for _, w := range words {
		if forbidden[w] {
			return fmt.Errorf("%w: forbidden keyword %s", ErrUnsafeQuery, w)
		}
	}
	return nil
}

// stripLiterals заменяет содержимое '...' и "..." пробелами.
// Удвоенная кавычка внутри литерала считается экранированной.
func stripLiterals(query string) (string, error) {
	var b strings.Builder
	var quote rune
	runes := []rune(query)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
			b.WriteRune(' ')
		case quote != 0 && r == quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				i++
				continue
			}
			quote = 0
			b.WriteRune(' ')
		case quote != 0:
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	if quote != 0 {
		return "", fmt.Errorf("%w: unterminated quoted string", ErrUnsafeQuery)
	}
	return b.String(), nil
}
