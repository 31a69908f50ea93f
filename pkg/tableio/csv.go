package tableio

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// readCSV - прочитать CSV с заголовком. Все колонки TEXT, пустые значения - NULL.
func readCSV(r io.Reader, delimiter rune) (*table.Table, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var rows [][]any
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("csv line %d has %d fields, header has %d", line, len(record), len(header))
		}

		row := make([]any, len(header))
		for i, v := range record {
			if v != "" {
				row[i] = v
			}
		}
		rows = append(rows, row)
	}

	return table.FromRows(header, rows)
}

// writeCSV - записать таблицу в CSV с заголовком
func writeCSV(w io.Writer, t *table.Table, delimiter rune) error {
	writer := csv.NewWriter(w)
	if delimiter != 0 {
		writer.Comma = delimiter
	}

	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(t.Columns()))
	for pos := 0; pos < t.Len(); pos++ {
		for i, c := range t.Columns() {
			record[i] = schema.FormatCell(c.Values[pos], c.Type)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", pos, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
