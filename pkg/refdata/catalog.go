package refdata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	"github.com/ruslano69/tdtp-scrubber/pkg/security"
	"github.com/ruslano69/tdtp-scrubber/pkg/tableio"
	"go.uber.org/zap"
)

// Типы источников справочников
const (
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceMySQL    = "mysql"
	SourceMSSQL    = "mssql"
)

// Source - объявление справочника в конфигурации
type Source struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Type  string `yaml:"type" json:"type" validate:"required,oneof=file sqlite postgres mysql mssql"`
	Path  string `yaml:"path" json:"path,omitempty" validate:"required_if=Type file"`
	DSN   string `yaml:"dsn" json:"dsn,omitempty" validate:"required_unless=Type file"`
	Query string `yaml:"query" json:"query,omitempty"` // по умолчанию SELECT * FROM <name>
	Sheet string `yaml:"sheet" json:"sheet,omitempty"` // лист Excel для type=file
}

// Validate проверяет объявление источника
func (s Source) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid reference %q: %w", s.Name, err)
	}
	if s.Query != "" && s.Type != SourceFile {
		if err := security.ValidateQuery(s.Query); err != nil {
			return fmt.Errorf("invalid reference %q: %w", s.Name, err)
		}
	}
	return nil
}

// Catalog - ленивый загрузчик справочников с кэшем
type Catalog struct {
	mu      sync.Mutex
	sources map[string]Source
	cache   map[string]*table.Table
	logger  *zap.Logger
}

// NewCatalog создает каталог из объявлений. Имена должны быть уникальны.
func NewCatalog(sources []Source, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		sources: make(map[string]Source, len(sources)),
		cache:   make(map[string]*table.Table),
		logger:  logger,
	}
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.sources[s.Name]; dup {
			return nil, fmt.Errorf("duplicate reference name: %s", s.Name)
		}
		c.sources[s.Name] = s
	}
	return c, nil
}

// Names возвращает объявленные имена
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table загружает справочник при первом обращении
func (c *Catalog) Table(ctx context.Context, name string) (*table.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.cache[name]; ok {
		return t, nil
	}

	source, ok := c.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	t, err := load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference %s: %w", name, err)
	}

	c.logger.Debug("reference table loaded",
		zap.String("reference", name),
		zap.String("type", source.Type),
		zap.Int("rows", t.Len()),
	)
	c.cache[name] = t
	return t, nil
}

func load(ctx context.Context, s Source) (*table.Table, error) {
	query := s.Query
	if query == "" {
		query = "SELECT * FROM " + s.Name
	}

	switch s.Type {
	case SourceFile:
		return tableio.Load(s.Path, tableio.Options{Sheet: s.Sheet})
	case SourcePostgres:
		return queryPostgres(ctx, s.DSN, query)
	default:
		return querySQL(ctx, driverName(s.Type), s.DSN, query)
	}
}
