package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
)

// Logger - журнал изменений, который получают правила очистки.
// Одна запись на каждый исход правила или стадии, никогда не на строку.
type Logger interface {
	LogHistory(ruleType, field string, affected *table.Table, category Category, description string)
	Report() Report
	ResetReport()
}

// History - журнал изменений одного запуска. Записи накапливаются в отчете
// и пересылаются в appenders (синхронно или через буферизованный канал).
type History struct {
	mu      sync.RWMutex
	entries Report
	sinks   *MultiAppender
	config  HistoryConfig

	entryChannel chan *Entry
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// HistoryConfig - конфигурация журнала
type HistoryConfig struct {
	// AsyncMode - асинхронная запись в appenders
	AsyncMode bool

	// BufferSize - размер буфера для асинхронного режима
	BufferSize int

	// RunID - идентификатор запуска, проставляется в каждую запись
	RunID string

	// Clock - источник времени (для тестов)
	Clock func() time.Time

	// OnError - callback при ошибке записи в appender
	OnError func(error)
}

// NewHistory - создать журнал
func NewHistory(config HistoryConfig, appenders ...Appender) *History {
	ctx, cancel := context.WithCancel(context.Background())

	h := &History{
		sinks:  NewMultiAppender(appenders...),
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	if h.config.BufferSize <= 0 {
		h.config.BufferSize = 1000
	}
	if h.config.Clock == nil {
		h.config.Clock = time.Now
	}

	if h.config.AsyncMode && len(appenders) > 0 {
		h.entryChannel = make(chan *Entry, h.config.BufferSize)
		h.wg.Add(1)
		go h.processEntries()
	}

	return h
}

// LogHistory - записать изменение
func (h *History) LogHistory(ruleType, field string, affected *table.Table, category Category, description string) {
	entry := NewEntry(ruleType, field, category, description).
		WithTimestamp(h.config.Clock()).
		WithRunID(h.config.RunID).
		WithAffected(affected)

	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.mu.Unlock()

	h.forward(entry)
}

// Report - копия накопленного отчета
func (h *History) Report() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(Report, len(h.entries))
	copy(out, h.entries)
	return out
}

// ResetReport - очистить накопленный отчет
func (h *History) ResetReport() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}

// forward - переслать запись в appenders
func (h *History) forward(entry *Entry) {
	if h.sinks.Len() == 0 {
		return
	}

	if h.entryChannel != nil {
		select {
		case h.entryChannel <- entry:
			return
		case <-h.ctx.Done():
			h.handleError(fmt.Errorf("history is closed"))
			return
		default:
			// Буфер переполнен, записываем синхронно
		}
	}

	h.writeEntry(context.Background(), entry)
}

// writeEntry - записать entry во все appenders
func (h *History) writeEntry(ctx context.Context, entry *Entry) {
	if err := h.sinks.Append(ctx, entry); err != nil {
		h.handleError(err)
	}
}

// processEntries - обработка entries в асинхронном режиме
func (h *History) processEntries() {
	defer h.wg.Done()

	for {
		select {
		case entry := <-h.entryChannel:
			h.writeEntry(context.Background(), entry)
		case <-h.ctx.Done():
			h.drainChannel()
			return
		}
	}
}

// drainChannel - обработать оставшиеся entries в канале
func (h *History) drainChannel() {
	for {
		select {
		case entry := <-h.entryChannel:
			h.writeEntry(context.Background(), entry)
		default:
			return
		}
	}
}

// Flush - сбросить буферы appenders
func (h *History) Flush() error {
	err := h.sinks.Flush()
	if err != nil {
		h.handleError(err)
	}
	return err
}

// Close - дождаться асинхронной записи и закрыть appenders
func (h *History) Close() error {
	var err error

	h.closeOnce.Do(func() {
		h.cancel()
		h.wg.Wait()

		flushErr := h.Flush()
		closeErr := h.sinks.Close()
		if closeErr != nil {
			h.handleError(closeErr)
		}
		err = errors.Join(flushErr, closeErr)
	})

	return err
}

// handleError - обработка ошибки
func (h *History) handleError(err error) {
	if h.config.OnError != nil {
		h.config.OnError(err)
	}
}

// NullLogger - журнал, который ничего не хранит (проверка конфигурации без данных)
type NullLogger struct{}

// NewNullLogger - создать null logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

// LogHistory - ничего не делает
func (NullLogger) LogHistory(string, string, *table.Table, Category, string) {}

// Report - всегда пустой
func (NullLogger) Report() Report { return nil }

// ResetReport - ничего не делает
func (NullLogger) ResetReport() {}
