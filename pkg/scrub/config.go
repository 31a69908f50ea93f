package scrub

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/brokers"
	"github.com/ruslano69/tdtp-scrubber/pkg/export"
	"github.com/ruslano69/tdtp-scrubber/pkg/processors"
	"github.com/ruslano69/tdtp-scrubber/pkg/refdata"
	"github.com/ruslano69/tdtp-scrubber/pkg/resilience"
	"github.com/ruslano69/tdtp-scrubber/pkg/resultlog"
)

// RuleSpec - описание правила в конфигурации
type RuleSpec = processors.RuleSpec

// Config содержит полную конфигурацию запуска очистки
type Config struct {
	Name       string             `yaml:"name"`
	Rules      []RuleSpec         `yaml:"rules"`
	Profile    processors.Profile `yaml:"profile"`
	References []refdata.Source   `yaml:"references"`
	Audit      AuditConfig        `yaml:"audit"`
	Output     export.Config      `yaml:"output"`
	ResultLog  resultlog.Config   `yaml:"result_log"`
}

// AuditConfig определяет, куда пересылаются записи отчета
type AuditConfig struct {
	Console bool   `yaml:"console"` // Вывод записей в stdout
	Format  string `yaml:"format" validate:"omitempty,oneof=text json csv"`
	Level   string `yaml:"level" validate:"omitempty,oneof=minimal standard full"`
	Async   bool   `yaml:"async"` // Асинхронная запись в appenders

	File     *FileAuditConfig     `yaml:"file,omitempty"`
	Database *DatabaseAuditConfig `yaml:"database,omitempty"`
	Broker   *brokers.Config      `yaml:"broker,omitempty"`

	// Breaker - circuit breaker для broker (по умолчанию 5 ошибок, 30s)
	Breaker *resilience.Config `yaml:"breaker,omitempty"`
}

// FileAuditConfig - запись отчета в файл с ротацией
type FileAuditConfig struct {
	Path       string `yaml:"path" validate:"required"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json csv"`
	MaxSize    int64  `yaml:"max_size"` // В мегабайтах
	MaxBackups int    `yaml:"max_backups"`
}

// DatabaseAuditConfig - запись отчета в SQL таблицу
type DatabaseAuditConfig struct {
	Driver    string `yaml:"driver" validate:"required,oneof=sqlite postgres mysql"`
	DSN       string `yaml:"dsn" validate:"required"`
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size" validate:"gte=0"`
}

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig разбирает, проверяет и дополняет конфигурацию
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.SetDefaults()

	return &config, nil
}

// Validate проверяет корректность конфигурации.
// Параметры правил проверяются при построении правил (Scrubber.Check).
func (c *Config) Validate() error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("at least one rule is required")
	}
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.RuleType) == "" {
			return fmt.Errorf("rule[%d]: rule_type is required", i)
		}
	}

	profile := c.Profile
	profile.SetDefaults()
	if err := profile.Validate(); err != nil {
		return err
	}

	for i, ref := range c.References {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("references[%d]: %w", i, err)
		}
	}

	if err := c.Audit.Validate(); err != nil {
		return err
	}

	if err := c.Output.Validate(); err != nil {
		return err
	}

	if err := validator.New().Struct(c.ResultLog); err != nil {
		return fmt.Errorf("invalid result_log: %w", err)
	}

	return nil
}

// Validate проверяет секцию audit, включая вложенные file, database и broker
func (a AuditConfig) Validate() error {
	if err := validator.New().Struct(a); err != nil {
		return fmt.Errorf("invalid audit: %w", err)
	}
	return nil
}

// SetDefaults устанавливает значения по умолчанию
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "scrub"
	}

	c.Profile.SetDefaults()
	c.Output.SetDefaults()

	if c.Audit.Format == "" {
		c.Audit.Format = string(audit.FormatText)
	}
	if c.Audit.File != nil && c.Audit.File.Format == "" {
		c.Audit.File.Format = string(audit.FormatJSON)
	}
	if c.Audit.Database != nil && c.Audit.Database.Table == "" {
		c.Audit.Database.Table = "scrub_audit"
	}

	if c.ResultLog.Enabled() && c.ResultLog.TTL == 0 {
		c.ResultLog.TTL = 3600
	}
}
