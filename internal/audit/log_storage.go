package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogStorage пишет журнал в zap. Нужен агенту, у которого нет доступа к БД.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("action-log")}
}

func (s *LogStorage) WriteBatch(_ context.Context, logs []ActionLog) error {
	for _, l := range logs {
		s.logger.Info("action",
			zap.String("id", l.ID),
			zap.String("trace_id", l.TraceID),
			zap.String("agent_id", l.AgentID),
			zap.String("mandate_id", l.MandateID),
			zap.String("action", l.Action),
			zap.String("source", l.Source),
			zap.String("price", l.Price.String()),
			zap.Int64("quantity", l.Quantity),
			zap.Bool("was_successful", l.WasSuccessful),
			zap.String("reason", l.Reason),
			zap.String("remarks", l.Remarks),
			zap.Time("timestamp", l.Timestamp),
		)
	}
	return nil
}
