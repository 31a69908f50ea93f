package packet

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// CompressionOptions содержит настройки сжатия данных
type CompressionOptions struct {
	Enabled bool // Включить сжатие
	Level   int  // Уровень сжатия: 1 (fastest) - 19 (best), по умолчанию 3
	MinSize int  // Минимальный размер данных для сжатия (bytes), по умолчанию 1024
}

// DefaultCompressionOptions возвращает настройки сжатия по умолчанию
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Enabled: false,
		Level:   3,
		MinSize: 1024,
	}
}

// Generator отвечает за генерацию TDTP пакетов
type Generator struct {
	maxMessageSize int // в байтах, 0 - без разбиения
	compression    CompressionOptions
}

// NewGenerator создает новый генератор
func NewGenerator() *Generator {
	return &Generator{
		maxMessageSize: 3800000,
		compression:    DefaultCompressionOptions(),
	}
}

// SetMaxMessageSize устанавливает максимальный размер сообщения
func (g *Generator) SetMaxMessageSize(size int) {
	g.maxMessageSize = size
}

// SetCompression устанавливает настройки сжатия
func (g *Generator) SetCompression(opts CompressionOptions) {
	if opts.Level < 1 {
		opts.Level = 1
	}
	if opts.Level > 19 {
		opts.Level = 19
	}
	g.compression = opts
}

// Generate создает пакеты заданного типа, разбивая строки на части по размеру
func (g *Generator) Generate(msgType MessageType, tableName string, schema Schema, rows [][]string) ([]*DataPacket, error) {
	partitions := g.partitionRows(rows)
	base := NewDataPacket(msgType, tableName).Header.MessageID

	packets := make([]*DataPacket, 0, len(partitions))
	for i, partition := range partitions {
		packet := NewDataPacket(msgType, tableName)
		packet.Header.MessageID = fmt.Sprintf("%s-P%d", base, i+1)
		packet.Header.PartNumber = i + 1
		packet.Header.TotalParts = len(partitions)
		packet.Header.RecordsInPart = len(partition)
		packet.Schema = schema

		data, err := g.rowsToData(partition)
		if err != nil {
			return nil, err
		}
		packet.Data = data
		packets = append(packets, packet)
	}

	return packets, nil
}

// ToXML сериализует пакет в XML
func (g *Generator) ToXML(packet *DataPacket, indent bool) ([]byte, error) {
	var data []byte
	var err error

	if indent {
		data, err = xml.MarshalIndent(packet, "", "  ")
	} else {
		data, err = xml.Marshal(packet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal XML: %w", err)
	}

	return append([]byte(xml.Header), data...), nil
}

// WriteToFile записывает пакет в файл
func (g *Generator) WriteToFile(packet *DataPacket, filename string) error {
	data, err := g.ToXML(packet, true)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// WriteToWriter записывает пакет в writer
func (g *Generator) WriteToWriter(packet *DataPacket, w io.Writer) error {
	data, err := g.ToXML(packet, true)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// partitionRows разбивает строки на части по размеру
func (g *Generator) partitionRows(rows [][]string) [][][]string {
	if len(rows) == 0 {
		return [][][]string{{}}
	}
	if g.maxMessageSize <= 0 {
		return [][][]string{rows}
	}

	// Примерный размер служебной информации
	const overheadSize = 5000

	var partitions [][][]string
	var current [][]string
	currentSize := 0

	for _, row := range rows {
		rowSize := estimateRowSize(row)
		if currentSize+rowSize+overheadSize > g.maxMessageSize && len(current) > 0 {
			partitions = append(partitions, current)
			current = nil
			currentSize = 0
		}
		current = append(current, row)
		currentSize += rowSize
	}

	return append(partitions, current)
}

// rowsToData преобразует строки в Data, сжимая их при необходимости
func (g *Generator) rowsToData(rows [][]string) (Data, error) {
	lines := make([]string, len(rows))
	total := 0
	for i, row := range rows {
		lines[i] = joinRow(row)
		total += len(lines[i])
	}

	if !g.compression.Enabled || total < g.compression.MinSize || len(lines) == 0 {
		return linesToData(lines), nil
	}

	data, err := compressRows(lines, g.compression.Level)
	if err != nil {
		return Data{}, fmt.Errorf("compression failed: %w", err)
	}
	return data, nil
}

// escapeValue экранирует специальные символы в значении.
// Backslash (\) экранируется как \\, pipe (|) как \|
func escapeValue(value string) string {
	// Сначала backslash, потом pipe (важен порядок!)
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	return strings.ReplaceAll(escaped, "|", "\\|")
}

func joinRow(row []string) string {
	escaped := make([]string, len(row))
	for i, value := range row {
		escaped[i] = escapeValue(value)
	}
	return strings.Join(escaped, "|")
}

func linesToData(lines []string) Data {
	data := Data{Rows: make([]Row, len(lines))}
	for i, line := range lines {
		data.Rows[i] = Row{Value: line}
	}
	return data
}

// RowsToData преобразует [][]string в Data без сжатия
func RowsToData(rows [][]string) Data {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = joinRow(row)
	}
	return linesToData(lines)
}

// estimateRowSize примерно оценивает размер строки в байтах
func estimateRowSize(row []string) int {
	size := 0
	for _, value := range row {
		size += len(value) + 1 // +1 для разделителя
	}
	return size + 10 // XML теги <R></R>
}
