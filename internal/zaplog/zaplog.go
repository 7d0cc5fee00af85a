// Package zaplog adapts zap to the ledger.OperationLogger callback used by every domain service.
package zaplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"go.uber.org/zap"
)

const operationMessage = "operation"

// OperationLogger writes one structured line per domain operation.
type OperationLogger struct {
	logger *zap.Logger
}

// New returns an OperationLogger; a nil logger discards everything.
func New(logger *zap.Logger) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger}
}

// LogOperation logs successful operations at info and failed ones at warn.
func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.AccountID.IsZero() {
		fields = append(fields, zap.String("account_id", entry.AccountID.String()))
	}
	if entry.Subject != "" {
		fields = append(fields, zap.String("subject", entry.Subject))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if metadata := entry.Metadata.String(); metadata != "{}" {
		fields = append(fields, zap.String("metadata", metadata))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn(operationMessage, append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info(operationMessage, fields...)
}
