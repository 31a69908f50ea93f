// Package xlsx - обмен таблицами и отчетами через файлы Excel (excelize).
//
// Заголовок колонки имеет вид "name (TYPE)"; маркер ключа " *" допускается и игнорируется.
// Даты и время пишутся текстом, чтобы чтение возвращало то же значение.
package xlsx

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet - имя листа по умолчанию
const DefaultSheet = "Sheet1"

// ReportSheet - имя листа отчета
const ReportSheet = "Report"

// WriteTable - записать таблицу в XLSX
//
// Пример:
//
//	err := xlsx.WriteTable(w, t, "Orders")
func WriteTable(w io.Writer, t *table.Table, sheetName string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := prepareSheet(f, sheetName); err != nil {
		return err
	}
	if sheetName == "" {
		sheetName = DefaultSheet
	}

	headers := make([]string, len(t.Columns()))
	for i, c := range t.Columns() {
		headers[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
	}
	if err := writeHeader(f, sheetName, headers); err != nil {
		return err
	}

	styles := make(map[int]int)
	for col, c := range t.Columns() {
		styleID, err := cellStyle(f, styles, c.Type)
		if err != nil {
			return err
		}
		for pos, v := range c.Values {
			cell := columnName(col+1) + strconv.Itoa(pos+2)
			if err := f.SetCellValue(sheetName, cell, toExcel(v, c.Type)); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			f.SetCellStyle(sheetName, cell, cell, styleID)
		}
		colName := columnName(col + 1)
		f.SetColWidth(sheetName, colName, colName, 15)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveTable - записать таблицу в файл XLSX
func SaveTable(t *table.Table, filePath string, sheetName string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteTable(file, t, sheetName); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadTable - прочитать таблицу из XLSX.
// Пустой sheetName означает первый лист. Пустые ячейки становятся NULL,
// значения, не подходящие под тип колонки, сохраняются текстом.
func ReadTable(r io.Reader, sheetName string) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheetName)
	}

	columns := make([]*table.Column, len(rows[0]))
	for i, header := range rows[0] {
		name, fieldType := parseHeader(header)
		columns[i] = table.NewColumn(name, fieldType, make([]any, len(rows)-1))
	}

	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		dataRow := rows[rowIdx]
		for col, c := range columns {
			if col >= len(dataRow) {
				continue
			}
			c.Values[rowIdx-1] = fromExcel(dataRow[col], c.Type)
		}
	}

	return table.New(columns...)
}

// LoadTable - прочитать таблицу из файла XLSX
func LoadTable(filePath string, sheetName string) (*table.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ReadTable(file, sheetName)
}

// WriteReport - записать отчет очистки на лист "Report"
func WriteReport(w io.Writer, report audit.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := prepareSheet(f, ReportSheet); err != nil {
		return err
	}
	if err := writeHeader(f, ReportSheet, audit.ReportHeader); err != nil {
		return err
	}

	for i, row := range report.Rows() {
		cell := "A" + strconv.Itoa(i+2)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(ReportSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write report row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// prepareSheet - создать лист и сделать его единственным
func prepareSheet(f *excelize.File, sheetName string) error {
	if sheetName == "" || sheetName == DefaultSheet {
		return nil
	}
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	return f.DeleteSheet(DefaultSheet)
}

func writeHeader(f *excelize.File, sheetName string, headers []string) error {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for col, header := range headers {
		cell := columnName(col+1) + "1"
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	return nil
}

// parseHeader - разобрать заголовок "field_name (TYPE)" или "field_name (TYPE) *"
func parseHeader(header string) (string, schema.DataType) {
	header = strings.TrimSuffix(strings.TrimSpace(header), " *")

	if idx := strings.LastIndex(header, "("); idx > 0 {
		if endIdx := strings.LastIndex(header, ")"); endIdx > idx {
			fieldType := schema.DataType(strings.ToUpper(strings.TrimSpace(header[idx+1 : endIdx])))
			if schema.IsValidType(fieldType) {
				return strings.TrimSpace(header[:idx]), fieldType
			}
		}
	}

	return header, schema.TypeText
}

// toExcel - значение ячейки для excelize
func toExcel(v any, fieldType schema.DataType) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return schema.FormatCell(val, fieldType)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int32, int64, float32, float64:
		return val
	default:
		return schema.FormatValue(val)
	}
}

// fromExcel - значение ячейки из текста Excel
func fromExcel(raw string, fieldType schema.DataType) any {
	if raw == "" {
		return nil
	}
	v, err := schema.ParseCell(raw, fieldType)
	if err != nil {
		return raw
	}
	return v
}

// cellStyle - стиль со встроенным числовым форматом Excel по типу колонки
func cellStyle(f *excelize.File, cache map[int]int, fieldType schema.DataType) (int, error) {
	numFmt := 49 // "@", текст
	switch schema.NormalizeType(fieldType) {
	case schema.TypeInteger:
		numFmt = 1
	case schema.TypeReal, schema.TypeDecimal:
		numFmt = 2
	}

	if id, ok := cache[numFmt]; ok {
		return id, nil
	}
	id, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
	if err != nil {
		return 0, fmt.Errorf("failed to create cell style: %w", err)
	}
	cache[numFmt] = id
	return id, nil
}

// columnName - номер колонки в имя колонки Excel (1 → A, 27 → AA)
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
