package schema

import (
	"fmt"
	"strings"
	"time"
)

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'f': "000000",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'z': "-0700",
	'Z': "MST",
	'j': "002",
	'%': "%",
}

// ToGoLayout - преобразует формат даты в layout пакета time.
// Принимает strftime-формат ("%Y-%m-%d %H:%M:%S") либо уже готовый Go layout.
func ToGoLayout(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("date format is empty")
	}
	if !strings.Contains(format, "%") {
		return format, nil
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("date format %q ends with a bare %%", format)
		}
		i++
		repl, ok := strftimeDirectives[format[i]]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c in date format %q", format[i], format)
		}
		b.WriteString(repl)
	}
	return b.String(), nil
}

// DateFormat - разобранный формат даты, используется правилами Date и Session
type DateFormat struct {
	Source string
	Layout string
}

// NewDateFormat создает DateFormat и проверяет формат
func NewDateFormat(format string) (DateFormat, error) {
	layout, err := ToGoLayout(format)
	if err != nil {
		return DateFormat{}, err
	}
	return DateFormat{Source: format, Layout: layout}, nil
}

// Parse парсит значение ячейки: time.Time принимается как есть, остальное форматируется в текст
func (f DateFormat) Parse(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, true
	}
	s := strings.TrimSpace(FormatValue(v))
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(f.Layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Format форматирует время по формату
func (f DateFormat) Format(t time.Time) string {
	return t.Format(f.Layout)
}
