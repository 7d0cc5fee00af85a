package ledger

import "context"

// Operation status values reported through OperationLog.Status.
const (
	OperationStatusOK    = "ok"
	OperationStatusError = "error"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by state-changing operations.
// It is shared by every engine package.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing operation.
type OperationLog struct {
	Operation string
	AccountID AccountID
	Subject   string
	Amount    Coins
	Metadata  MetadataJSON
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// EmitOperation forwards entry to logger, deriving Status from Error when unset. A nil logger is a no-op.
func EmitOperation(ctx context.Context, logger OperationLogger, entry OperationLog) {
	if logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = OperationStatusError
		} else {
			entry.Status = OperationStatusOK
		}
	}
	logger.LogOperation(ctx, entry)
}
