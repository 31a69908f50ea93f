// Package tableio - загрузка и сохранение таблиц по расширению файла:
// TDTP (.xml, .tdtp), Excel (.xlsx) и CSV (.csv).
package tableio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/packet"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/xlsx"
)

// Format - формат табличного файла
type Format string

const (
	FormatTDTP Format = "tdtp"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Options - параметры чтения и записи
type Options struct {
	// TableName - имя таблицы в заголовке TDTP пакета
	TableName string

	// Sheet - лист Excel (пусто - первый лист при чтении, Sheet1 при записи)
	Sheet string

	// Delimiter - разделитель CSV (по умолчанию ',')
	Delimiter rune

	// Compression - сжатие блока данных TDTP
	Compression packet.CompressionOptions

	// MaxMessageSize - размер части TDTP в байтах, 0 - один файл
	MaxMessageSize int
}

// DetectFormat - определить формат по расширению
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".tdtp":
		return FormatTDTP, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported table file extension: %q (supported: .xml, .tdtp, .xlsx, .csv)", filepath.Ext(path))
	}
}

// Read - прочитать таблицу из reader
func Read(r io.Reader, format Format, opts Options) (*table.Table, error) {
	switch format {
	case FormatTDTP:
		pkt, err := packet.NewParser().Parse(r)
		if err != nil {
			return nil, err
		}
		return FromPacket(pkt)
	case FormatXLSX:
		return xlsx.ReadTable(r, opts.Sheet)
	case FormatCSV:
		return readCSV(r, opts.Delimiter)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Write - записать таблицу в writer. TDTP пишется одним пакетом.
func Write(w io.Writer, t *table.Table, format Format, opts Options) error {
	switch format {
	case FormatTDTP:
		opts.MaxMessageSize = 0
		packets, err := ToPackets(t, opts)
		if err != nil {
			return err
		}
		return packet.NewGenerator().WriteToWriter(packets[0], w)
	case FormatXLSX:
		return xlsx.WriteTable(w, t, opts.Sheet)
	case FormatCSV:
		return writeCSV(w, t, opts.Delimiter)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Encode - записать таблицу в память (для выгрузки в объектное хранилище)
func Encode(t *table.Table, format Format, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, t, format, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load - загрузить таблицу из файла. Для TDTP набор частей base_part_N_of_M
// объединяется в одну таблицу.
func Load(path string, opts Options) (*table.Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == FormatTDTP {
		return loadTDTP(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	t, err := Read(file, format, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// Save - сохранить таблицу в файл. TDTP больше MaxMessageSize
// сохраняется частями base_part_N_of_M.ext.
func Save(t *table.Table, path string, opts Options) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if format == FormatTDTP {
		if opts.TableName == "" {
			opts.TableName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return saveTDTP(t, path, opts)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(file, t, format, opts); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
