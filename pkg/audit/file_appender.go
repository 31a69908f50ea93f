package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Format - формат записи в файл/консоль
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// encodeEntry - сериализация записи в одну строку
func encodeEntry(entry *Entry, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := entry.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entry: %w", err)
		}
		return append(data, '\n'), nil
	case FormatCSV:
		var b strings.Builder
		w := csv.NewWriter(&b)
		if err := w.Write(Report{entry}.Rows()[0]); err != nil {
			return nil, err
		}
		w.Flush()
		return []byte(b.String()), w.Error()
	default:
		return []byte(entry.String() + "\n"), nil
	}
}

// FileAppender - запись в файл с ротацией
type FileAppender struct {
	mu          sync.Mutex
	file        *os.File
	filePath    string
	maxSize     int64
	maxBackups  int
	currentSize int64
	level       Level
	format      Format
}

// FileAppenderConfig - конфигурация file appender
type FileAppenderConfig struct {
	FilePath   string
	MaxSize    int64 // В мегабайтах
	MaxBackups int
	Level      Level
	Format     Format
}

// NewFileAppender - создать file appender
func NewFileAppender(config FileAppenderConfig) (*FileAppender, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	maxSize := config.MaxSize
	if maxSize == 0 {
		maxSize = 100 // По умолчанию 100 MB
	}

	maxBackups := config.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}

	fa := &FileAppender{
		filePath:   config.FilePath,
		maxSize:    maxSize * 1024 * 1024,
		maxBackups: maxBackups,
		level:      config.Level,
		format:     config.Format,
	}
	if err := fa.open(); err != nil {
		return nil, err
	}
	return fa, nil
}

// open - открыть файл на дозапись, для CSV пишется заголовок в пустой файл
func (fa *FileAppender) open() error {
	file, err := os.OpenFile(fa.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat file: %w", err)
	}

	fa.file = file
	fa.currentSize = info.Size()

	if fa.format == FormatCSV && fa.currentSize == 0 {
		header := strings.Join(ReportHeader, ",") + "\n"
		n, err := fa.file.WriteString(header)
		if err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		fa.currentSize += int64(n)
	}
	return nil
}

// Append - записать entry в файл
func (fa *FileAppender) Append(ctx context.Context, entry *Entry) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	data, err := encodeEntry(entry.FilterByLevel(fa.level), fa.format)
	if err != nil {
		return err
	}

	if fa.currentSize+int64(len(data)) > fa.maxSize {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate file: %w", err)
		}
	}

	n, err := fa.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	fa.currentSize += int64(n)
	return nil
}

// rotate - ротация файлов: audit.log -> audit.log.1 -> audit.log.2 ...
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}

	for i := fa.maxBackups - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", fa.filePath, i)
		newPath := fmt.Sprintf("%s.%d", fa.filePath, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}

	if err := os.Rename(fa.filePath, fmt.Sprintf("%s.1", fa.filePath)); err != nil {
		return err
	}

	return fa.open()
}

// Close - закрыть файл
func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file != nil {
		err := fa.file.Close()
		fa.file = nil
		return err
	}
	return nil
}

// Flush - сбросить буфер
func (fa *FileAppender) Flush() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file != nil {
		return fa.file.Sync()
	}
	return nil
}

// FilePath - путь к файлу
func (fa *FileAppender) FilePath() string {
	return fa.filePath
}

// ConsoleAppender - запись в поток вывода (по умолчанию stdout)
type ConsoleAppender struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	format Format
}

// NewConsoleAppender - создать console appender
func NewConsoleAppender(out io.Writer, level Level, format Format) *ConsoleAppender {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleAppender{out: out, level: level, format: format}
}

// Append - записать в поток
func (ca *ConsoleAppender) Append(ctx context.Context, entry *Entry) error {
	data, err := encodeEntry(entry.FilterByLevel(ca.level), ca.format)
	if err != nil {
		return err
	}

	ca.mu.Lock()
	defer ca.mu.Unlock()
	_, err = ca.out.Write(data)
	return err
}

// Close - noop
func (ca *ConsoleAppender) Close() error {
	return nil
}

// NullAppender - пустой appender (для тестов)
type NullAppender struct{}

// NewNullAppender - создать null appender
func NewNullAppender() *NullAppender {
	return &NullAppender{}
}

// Append - ничего не делает
func (na *NullAppender) Append(ctx context.Context, entry *Entry) error {
	return nil
}

// Close - ничего не делает
func (na *NullAppender) Close() error {
	return nil
}

// MemoryAppender - накапливает записи в памяти
type MemoryAppender struct {
	mu      sync.Mutex
	entries []*Entry
	closed  bool
}

// NewMemoryAppender - создать memory appender
func NewMemoryAppender() *MemoryAppender {
	return &MemoryAppender{}
}

// Append - сохранить запись
func (ma *MemoryAppender) Append(ctx context.Context, entry *Entry) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.entries = append(ma.entries, entry)
	return nil
}

// Entries - сохраненные записи
func (ma *MemoryAppender) Entries() []*Entry {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return append([]*Entry(nil), ma.entries...)
}

// Closed - был ли вызван Close
func (ma *MemoryAppender) Closed() bool {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return ma.closed
}

// Close - пометить закрытым
func (ma *MemoryAppender) Close() error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.closed = true
	return nil
}
