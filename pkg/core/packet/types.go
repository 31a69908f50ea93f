// Package packet - формат TDTP: XML-пакет с описанием схемы и строками данных,
// разделенными '|'. Блок данных может быть сжат zstd и защищен контрольной суммой xxh3.
package packet

import (
	"time"

	"github.com/google/uuid"
)

// MessageType - тип пакета
type MessageType string

const (
	// TypeReference - полная таблица (входные данные, результат очистки, справочник)
	TypeReference MessageType = "reference"
	// TypeResponse - ответ на запрос
	TypeResponse MessageType = "response"
	// TypeAlarm - пакет с проблемными строками (например, удаленными при очистке)
	TypeAlarm MessageType = "alarm"
)

// DataPacket - корневой элемент TDTP. Элементы, которые очистке не нужны
// (AlarmDetails, атрибуты длины и ключа полей), при разборе пропускаются.
type DataPacket struct {
	Protocol string `xml:"protocol,attr"`
	Version  string `xml:"version,attr"`
	Header   Header `xml:"Header"`
	Schema   Schema `xml:"Schema"`
	Data     Data   `xml:"Data"`
}

// Header - метаданные пакета; части одной таблицы нумеруются с 1
type Header struct {
	Type          MessageType `xml:"Type"`
	TableName     string      `xml:"TableName"`
	MessageID     string      `xml:"MessageID"`
	PartNumber    int         `xml:"PartNumber,omitempty"`
	TotalParts    int         `xml:"TotalParts,omitempty"`
	RecordsInPart int         `xml:"RecordsInPart,omitempty"`
	Timestamp     time.Time   `xml:"Timestamp"`
}

// Schema - упорядоченный список колонок
type Schema struct {
	Fields []Field `xml:"Field"`
}

// Field - колонка: имя и тип (schema.DataType в текстовом виде)
type Field struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// Data - строки таблицы, открытые или сжатые одним блоком
type Data struct {
	Compression string `xml:"compression,attr,omitempty"` // Алгоритм сжатия: "zstd" или пусто
	Checksum    string `xml:"checksum,attr,omitempty"`    // XXH3 хеш сжатых данных (hex)
	Rows        []Row  `xml:"R"`
}

// Row - значения строки через '|', см. escapeValue
type Row struct {
	Value string `xml:",chardata"`
}

// NewDataPacket - пустой пакет TDTP 1.0 с новым MessageID
func NewDataPacket(msgType MessageType, tableName string) *DataPacket {
	return &DataPacket{
		Protocol: "TDTP",
		Version:  "1.0",
		Header: Header{
			Type:      msgType,
			TableName: tableName,
			MessageID: uuid.NewString(),
			Timestamp: time.Now().UTC(),
		},
	}
}

// FieldNames возвращает имена полей схемы
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// SchemaEquals - одинаковые имена и типы полей в том же порядке
func SchemaEquals(a, b Schema) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || a.Fields[i].Type != b.Fields[i].Type {
			return false
		}
	}
	return true
}
