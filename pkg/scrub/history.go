package scrub

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver "pgx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/ruslano69/tdtp-scrubber/pkg/audit"
	"github.com/ruslano69/tdtp-scrubber/pkg/brokers"
	"github.com/ruslano69/tdtp-scrubber/pkg/resilience"
)

// auditDrivers - драйверы database/sql для DatabaseAppender
var auditDrivers = map[string]string{
	"sqlite":   "sqlite",
	"postgres": "pgx",
	"mysql":    "mysql",
}

// historySet - журнал запуска и ресурсы его appenders
type historySet struct {
	history *audit.History
	db      *sql.DB
}

// Close закрывает журнал и подключение к БД
func (h *historySet) Close() error {
	err := h.history.Close()
	if h.db != nil {
		if dbErr := h.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// newHistory строит журнал с appenders из секции audit
func newHistory(ctx context.Context, config AuditConfig, runID string, logger *zap.Logger) (*historySet, error) {
	level, err := audit.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	set := &historySet{}
	var appenders []audit.Appender
	fail := func(err error) (*historySet, error) {
		for _, a := range appenders {
			a.Close()
		}
		if set.db != nil {
			set.db.Close()
		}
		return nil, err
	}

	if config.Console {
		appenders = append(appenders, audit.NewConsoleAppender(os.Stdout, level, audit.Format(config.Format)))
	}

	if fc := config.File; fc != nil {
		fa, err := audit.NewFileAppender(audit.FileAppenderConfig{
			FilePath:   fc.Path,
			MaxSize:    fc.MaxSize,
			MaxBackups: fc.MaxBackups,
			Level:      level,
			Format:     audit.Format(fc.Format),
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create audit file: %w", err))
		}
		appenders = append(appenders, fa)
	}

	if dc := config.Database; dc != nil {
		db, err := sql.Open(auditDrivers[dc.Driver], dc.DSN)
		if err != nil {
			return fail(fmt.Errorf("failed to open audit database: %w", err))
		}
		set.db = db
		da, err := audit.NewDatabaseAppender(audit.DatabaseAppenderConfig{
			DB:                 db,
			TableName:          dc.Table,
			Level:              level,
			BatchSize:          dc.BatchSize,
			AutoCreateTable:    true,
			DollarPlaceholders: dc.Driver == "postgres",
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create audit database appender: %w", err))
		}
		appenders = append(appenders, da)
	}

	if bc := config.Broker; bc != nil {
		publisher, err := brokers.New(*bc)
		if err != nil {
			return fail(err)
		}
		if err := publisher.Connect(ctx); err != nil {
			return fail(fmt.Errorf("failed to connect audit broker: %w", err))
		}
		appender := audit.NewBrokerAppender(publisher, level)
		if config.Breaker != nil {
			cbConfig := *config.Breaker
			if cbConfig.Name == "" {
				cbConfig.Name = "audit-" + bc.Type
			}
			cbConfig.OnStateChange = func(name string, from, to resilience.State) {
				logger.Warn("audit broker circuit state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			}
			cb, err := resilience.New(cbConfig)
			if err != nil {
				publisher.Close()
				return fail(err)
			}
			appender.WithBreaker(cb)
		}
		appenders = append(appenders, appender)
	}

	set.history = audit.NewHistory(audit.HistoryConfig{
		AsyncMode: config.Async,
		RunID:     runID,
		OnError: func(err error) {
			logger.Warn("audit appender error", zap.Error(err))
		},
	}, appenders...)
	return set, nil
}
