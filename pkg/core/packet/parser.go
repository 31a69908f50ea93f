package packet

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidPacket - пакет не соответствует формату TDTP
var ErrInvalidPacket = errors.New("invalid TDTP packet")

// Parser - чтение TDTP пакетов
type Parser struct{}

// NewParser создает парсер
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile читает пакет из файла
func (p *Parser) ParseFile(filename string) (*DataPacket, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// ParseBytes читает пакет из памяти
func (p *Parser) ParseBytes(data []byte) (*DataPacket, error) {
	return p.Parse(bytes.NewReader(data))
}

// Parse читает пакет из reader, проверяет заголовок и распаковывает сжатый блок данных
func (p *Parser) Parse(r io.Reader) (*DataPacket, error) {
	pkt := new(DataPacket)
	if err := xml.NewDecoder(r).Decode(pkt); err != nil {
		return nil, fmt.Errorf("failed to decode XML: %w", err)
	}
	if err := pkt.Validate(); err != nil {
		return nil, err
	}

	if pkt.Data.Compression == "" {
		return pkt, nil
	}
	rows, err := decompressRows(pkt.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	pkt.Data = Data{Rows: rows}
	return pkt, nil
}

// Validate - проверка обязательных полей заголовка и нумерации частей
func (p *DataPacket) Validate() error {
	h := p.Header
	var problem string

	switch {
	case p.Protocol != "TDTP":
		problem = fmt.Sprintf("protocol %q", p.Protocol)
	case p.Version == "":
		problem = "version is empty"
	case h.TableName == "":
		problem = "table name is empty"
	case h.Type != TypeReference && h.Type != TypeResponse && h.Type != TypeAlarm:
		problem = fmt.Sprintf("message type %q", h.Type)
	case (h.PartNumber != 0 || h.TotalParts != 0) && (h.PartNumber < 1 || h.PartNumber > h.TotalParts):
		problem = fmt.Sprintf("part %d of %d", h.PartNumber, h.TotalParts)
	case len(p.Data.Rows) > 0 && len(p.Schema.Fields) == 0:
		problem = "data without schema"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidPacket, problem)
}

// GetRowValues разбивает строку данных на значения полей с учетом \| и \\
func (p *Parser) GetRowValues(row Row) []string {
	var values []string
	var cur strings.Builder

	s := row.Value
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case c == '|':
			values = append(values, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(values, cur.String())
}

// Rows возвращает значения всех строк пакета
func (p *DataPacket) Rows() [][]string {
	parser := NewParser()
	rows := make([][]string, len(p.Data.Rows))
	for i, row := range p.Data.Rows {
		rows[i] = parser.GetRowValues(row)
	}
	return rows
}
