package tableio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/xlsx"
)

// ReportFormat - формат файла отчета
type ReportFormat string

const (
	ReportCSV  ReportFormat = "csv"
	ReportJSON ReportFormat = "json"
	ReportXLSX ReportFormat = "xlsx"
)

// DetectReportFormat - формат отчета по расширению
func DetectReportFormat(path string) (ReportFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReportCSV, nil
	case ".json":
		return ReportJSON, nil
	case ".xlsx":
		return ReportXLSX, nil
	default:
		return "", fmt.Errorf("unsupported report file extension: %q (supported: .csv, .json, .xlsx)", filepath.Ext(path))
	}
}

// WriteReport - записать отчет в writer
func WriteReport(w io.Writer, report audit.Report, format ReportFormat) error {
	switch format {
	case ReportCSV:
		return report.WriteCSV(w)
	case ReportJSON:
		return report.WriteJSON(w)
	case ReportXLSX:
		return xlsx.WriteReport(w, report)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// EncodeReport - записать отчет в память
func EncodeReport(report audit.Report, format ReportFormat) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, report, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveReport - сохранить отчет в файл, формат по расширению
func SaveReport(report audit.Report, path string) error {
	format, err := DetectReportFormat(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := WriteReport(file, report, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
