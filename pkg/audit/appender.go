package audit

import (
	"context"
	"errors"
	"fmt"
)

// Appender - приемник записей отчета (консоль, файл, БД, брокер)
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
	Close() error
}

// Flusher - appender с буферизацией
type Flusher interface {
	Flush() error
}

// MultiAppender рассылает запись всем приемникам. Отказ одного приемника
// не мешает остальным, ошибки объединяются через errors.Join.
type MultiAppender struct {
	appenders []Appender
}

// NewMultiAppender - создать рассылку по appenders
func NewMultiAppender(appenders ...Appender) *MultiAppender {
	return &MultiAppender{appenders: appenders}
}

func (ma *MultiAppender) each(op string, fn func(Appender) error) error {
	var errs []error
	for i, a := range ma.appenders {
		if err := fn(a); err != nil {
			errs = append(errs, fmt.Errorf("appender %d %s: %w", i, op, err))
		}
	}
	return errors.Join(errs...)
}

func (ma *MultiAppender) Append(ctx context.Context, entry *Entry) error {
	return ma.each("append", func(a Appender) error { return a.Append(ctx, entry) })
}

// Flush - сбросить буферы тех appenders, которые их имеют
func (ma *MultiAppender) Flush() error {
	return ma.each("flush", func(a Appender) error {
		if f, ok := a.(Flusher); ok {
			return f.Flush()
		}
		return nil
	})
}

func (ma *MultiAppender) Close() error {
	return ma.each("close", Appender.Close)
}

// Len - количество appenders
func (ma *MultiAppender) Len() int {
	return len(ma.appenders)
}
