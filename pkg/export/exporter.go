package export

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/packet"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/crypto"
	"github.com/ruslano69/tdtp-scrubber/pkg/tableio"
	"go.uber.org/zap"
)

// Типы выгрузки
const (
	TypeFile = "file"
	TypeS3   = "s3"
)

// Config - секция output конфигурации
type Config struct {
	Type   string `yaml:"type" json:"type" validate:"omitempty,oneof=file s3"`
	Path   string `yaml:"path" json:"path"`     // очищенная таблица (путь или ключ объекта)
	Report string `yaml:"report" json:"report"` // отчет (.csv, .json, .xlsx)
	Sheet  string `yaml:"sheet" json:"sheet"`

	// Compress - сжимать блок данных TDTP (zstd)
	Compress bool `yaml:"compress" json:"compress"`

	// EncryptionKey - AES-256 ключ (hex), выходные файлы запечатываются crypto.Seal
	EncryptionKey string `yaml:"encryption_key" json:"-" validate:"omitempty,hexadecimal,len=64"`

	// S3
	Bucket    string `yaml:"bucket" json:"bucket" validate:"required_if=Type s3"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
}

// Validate проверяет секцию output
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid output: %w", err)
	}
	if c.Path != "" {
		if _, err := tableio.DetectFormat(c.Path); err != nil {
			return fmt.Errorf("invalid output: %w", err)
		}
	}
	if c.Report != "" {
		if _, err := tableio.DetectReportFormat(c.Report); err != nil {
			return fmt.Errorf("invalid output: %w", err)
		}
	}
	return nil
}

// SetDefaults устанавливает значения по умолчанию
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = TypeFile
	}
}

// Exporter - кодирует таблицу и отчет и передает в Sink
type Exporter struct {
	config Config
	sink   Sink
	key    []byte
	logger *zap.Logger
}

// New создает exporter по конфигурации
func New(ctx context.Context, config Config, logger *zap.Logger) (*Exporter, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var sink Sink = FileSink{}
	if config.Type == TypeS3 {
		s3Sink, err := NewS3SinkFromConfig(ctx, config)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	}
	return NewWithSink(config, sink, logger)
}

// NewWithSink создает exporter поверх готового sink
func NewWithSink(config Config, sink Sink, logger *zap.Logger) (*Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Exporter{config: config, sink: sink, logger: logger}
	if config.EncryptionKey != "" {
		key, err := hex.DecodeString(config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		e.key = key
	}
	return e, nil
}

// WriteTable выгружает таблицу в output.path. Пустой путь - ничего не делает.
func (e *Exporter) WriteTable(ctx context.Context, t *table.Table, runID string) (string, error) {
	name := e.config.Path
	if name == "" {
		return "", nil
	}

	format, err := tableio.DetectFormat(name)
	if err != nil {
		return "", err
	}

	opts := tableio.Options{Sheet: e.config.Sheet}
	if e.config.Compress {
		opts.Compression = packet.CompressionOptions{Enabled: true, Level: 3}
	}
	data, err := tableio.Encode(t, format, opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode table: %w", err)
	}

	return e.put(ctx, name, data, runID)
}

// WriteReport выгружает отчет в output.report. Пустой путь - ничего не делает.
func (e *Exporter) WriteReport(ctx context.Context, report audit.Report, runID string) (string, error) {
	name := e.config.Report
	if name == "" {
		return "", nil
	}

	format, err := tableio.DetectReportFormat(name)
	if err != nil {
		return "", err
	}
	data, err := tableio.EncodeReport(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	return e.put(ctx, name, data, runID)
}

func (e *Exporter) put(ctx context.Context, name string, data []byte, runID string) (string, error) {
	if e.key != nil {
		sealed, err := crypto.Seal(e.key, data, runID)
		if err != nil {
			return "", err
		}
		data = sealed
	}

	if err := e.sink.Put(ctx, name, data); err != nil {
		return "", err
	}

	location := e.sink.Location(name)
	e.logger.Info("output written",
		zap.String("location", location),
		zap.Int("bytes", len(data)),
		zap.Bool("sealed", e.key != nil),
	)
	return location, nil
}
