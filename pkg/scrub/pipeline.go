package scrub

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruslano69/tdtp-scrubber/pkg/export"
	"github.com/ruslano69/tdtp-scrubber/pkg/refdata"
	"github.com/ruslano69/tdtp-scrubber/pkg/resultlog"
	"github.com/ruslano69/tdtp-scrubber/pkg/retry"
	"github.com/ruslano69/tdtp-scrubber/pkg/tableio"
)

// RunStats - статистика запуска пайплайна
type RunStats struct {
	RunID          string
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Input          string
	OutputLocation string
	ReportLocation string
	Result         *Result
}

// Pipeline - полный запуск: загрузка, очистка, выгрузка, публикация результата
type Pipeline struct {
	config *Config
	logger *zap.Logger
	stats  RunStats
}

// NewPipeline создает пайплайн по конфигурации
func NewPipeline(config *Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{config: config, logger: logger}
}

// Stats возвращает статистику последнего запуска
func (p *Pipeline) Stats() RunStats {
	return p.stats
}

// Check строит все правила со справочниками, не загружая входные данные
func (p *Pipeline) Check(ctx context.Context) error {
	catalog, err := refdata.NewCatalog(p.config.References, p.logger)
	if err != nil {
		return err
	}
	_, err = p.scrubber(catalog, nil).Check(ctx)
	return err
}

// Execute выполняет весь запуск над входным файлом
func (p *Pipeline) Execute(ctx context.Context, input string) (err error) {
	p.stats = RunStats{RunID: uuid.NewString(), StartTime: time.Now(), Input: input}
	logger := p.logger.With(zap.String("run_id", p.stats.RunID))

	defer func() {
		p.stats.EndTime = time.Now()
		p.stats.Duration = p.stats.EndTime.Sub(p.stats.StartTime)
		if pubErr := p.publish(ctx, err); pubErr != nil {
			logger.Warn("failed to publish result", zap.Error(pubErr))
		}
	}()

	// 1. Справочники и журнал
	catalog, err := refdata.NewCatalog(p.config.References, logger)
	if err != nil {
		return err
	}
	histories, err := newHistory(ctx, p.config.Audit, p.stats.RunID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := histories.Close(); closeErr != nil {
			logger.Warn("failed to close audit log", zap.Error(closeErr))
		}
	}()

	// 2. Загрузка входной таблицы
	t, err := tableio.Load(input, tableio.Options{})
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	// 3. Очистка
	scrubber := p.scrubber(catalog, logger, WithAuditLog(histories.history))
	result, err := scrubber.Run(ctx, t)
	if err != nil {
		return err
	}
	p.stats.Result = result

	// 4. Выгрузка
	exporter, err := export.New(ctx, p.config.Output, logger)
	if err != nil {
		return err
	}
	if p.stats.OutputLocation, err = exporter.WriteTable(ctx, t, p.stats.RunID); err != nil {
		return fmt.Errorf("failed to export table: %w", err)
	}
	if p.stats.ReportLocation, err = exporter.WriteReport(ctx, result.Report, p.stats.RunID); err != nil {
		return fmt.Errorf("failed to export report: %w", err)
	}

	return nil
}

func (p *Pipeline) scrubber(catalog *refdata.Catalog, logger *zap.Logger, opts ...Option) *Scrubber {
	if logger == nil {
		logger = p.logger
	}
	base := []Option{
		WithProfile(p.config.Profile),
		WithReferences(catalog),
		WithLogger(logger),
	}
	return New(p.config.Rules, append(base, opts...)...)
}

// publish отправляет итог запуска в Redis, если result_log настроен
func (p *Pipeline) publish(ctx context.Context, execErr error) error {
	if !p.config.ResultLog.Enabled() {
		return nil
	}

	result := resultlog.RunResult{
		RunID:      p.stats.RunID,
		Input:      p.stats.Input,
		Output:     p.stats.OutputLocation,
		StartedAt:  p.stats.StartTime,
		FinishedAt: p.stats.EndTime,
		DurationMs: p.stats.Duration.Milliseconds(),
	}
	if r := p.stats.Result; r != nil {
		result.RowsIn = r.RowsIn
		result.RowsOut = r.RowsOut
		result.Checksum = r.Checksum
		result.Summary = r.Report.Summary()
	}
	result.SetError(execErr)

	retryConfig := p.config.ResultLog.Retry
	retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		p.logger.Warn("result publish failed, retrying",
			zap.String("run_id", result.RunID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	retryer, err := retry.NewRetryer(retryConfig)
	if err != nil {
		return err
	}

	publisher := resultlog.NewRedisPublisher(p.config.ResultLog)
	defer publisher.Close()
	return retryer.DoWithData(ctx, func(ctx context.Context) error {
		return publisher.Publish(ctx, result)
	}, result)
}
