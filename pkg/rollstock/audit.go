package rollstock

import (
	"context"

	"go.uber.org/zap"
)

// LogAuditSink writes audit events to a structured logger. Recording is
// fire-and-forget: a sink failure must never fail the workflow that emitted
// the event, so this implementation has no error path at all.
// 監査イベントを構造化ログへ書き出すシンク。記録はfire-and-forgetであり、
// シンクの失敗が送出元のワークフローを失敗させてはならない。
type LogAuditSink struct {
	logger *zap.Logger
}

// NewLogAuditSink creates an audit sink backed by the given logger
// 指定のロガーを使う監査シンクを作成
func NewLogAuditSink(logger *zap.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger.Named("audit")}
}

// Record writes one audit event
// 監査イベントを1件書き出す
func (s *LogAuditSink) Record(_ context.Context, event AuditEvent) {
	fields := []zap.Field{
		zap.String("action", event.Action),
		zap.String("category", event.Category),
		zap.String("target_table", event.TargetTable),
		zap.String("target_id", event.TargetID),
		zap.String("actor_id", event.ActorID),
	}
	if len(event.Changes) > 0 {
		fields = append(fields, zap.Any("changes", event.Changes))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	s.logger.Info("監査イベント", fields...)
}

// NopAuditSink discards all events. Useful in tests.
// すべてのイベントを破棄するシンク。テスト用。
type NopAuditSink struct{}

// Record discards the event
// イベントを破棄する
func (NopAuditSink) Record(context.Context, AuditEvent) {}
