package schema

import (
	"fmt"
	"strings"
)

// DataType - тип колонки в нотации полей TDTP
type DataType string

// Канонические типы
const (
	TypeInteger   DataType = "INTEGER"
	TypeReal      DataType = "REAL"
	TypeDecimal   DataType = "DECIMAL"
	TypeText      DataType = "TEXT"
	TypeBoolean   DataType = "BOOLEAN"
	TypeDate      DataType = "DATE"
	TypeDatetime  DataType = "DATETIME"
	TypeTimestamp DataType = "TIMESTAMP"
)

// Синонимы, встречающиеся в заголовках Excel и схемах СУБД
const (
	TypeInt     DataType = "INT"
	TypeFloat   DataType = "FLOAT"
	TypeDouble  DataType = "DOUBLE"
	TypeVarchar DataType = "VARCHAR"
	TypeChar    DataType = "CHAR"
	TypeString  DataType = "STRING"
	TypeBool    DataType = "BOOL"
)

var canonical = map[DataType]DataType{
	"":            TypeText,
	TypeInt:       TypeInteger,
	TypeInteger:   TypeInteger,
	TypeFloat:     TypeReal,
	TypeDouble:    TypeReal,
	TypeReal:      TypeReal,
	TypeDecimal:   TypeDecimal,
	TypeVarchar:   TypeText,
	TypeChar:      TypeText,
	TypeString:    TypeText,
	TypeText:      TypeText,
	TypeBool:      TypeBoolean,
	TypeBoolean:   TypeBoolean,
	TypeDate:      TypeDate,
	TypeDatetime:  TypeDatetime,
	TypeTimestamp: TypeTimestamp,
}

// CellError - значение ячейки не разбирается как тип колонки
type CellError struct {
	Type    DataType
	Value   string
	Message string
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s cell %q: %s", e.Type, e.Value, e.Message)
}

// NormalizeType приводит синоним к каноническому типу; пустой тип - TEXT.
// Неизвестный тип возвращается как есть.
func NormalizeType(t DataType) DataType {
	if c, ok := canonical[DataType(strings.ToUpper(string(t)))]; ok {
		return c
	}
	return t
}

// IsValidType - тип известен (с учетом синонимов)
func IsValidType(t DataType) bool {
	_, ok := canonical[DataType(strings.ToUpper(string(t)))]
	return ok && t != ""
}

func IsNumericType(t DataType) bool {
	switch NormalizeType(t) {
	case TypeInteger, TypeReal, TypeDecimal:
		return true
	}
	return false
}

func IsBooleanType(t DataType) bool {
	return NormalizeType(t) == TypeBoolean
}
