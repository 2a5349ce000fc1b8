package ledger

import "github.com/pkg/errors"

// Transaction validation errors. Callers match them with errors.Is; the
// returned errors wrap them with context.
var (
	ErrInvalidAddress    = errors.New("invalid address format")
	ErrInvalidSignature  = errors.New("signature verification failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMissingDevFee     = errors.New("missing developer fee")
	ErrInvalidStructure  = errors.New("invalid transaction structure")
	ErrRateLimitExceeded = errors.New("transaction rate limit exceeded")
	ErrAnomalyDetected   = errors.New("anomaly detected")
	ErrSerialization     = errors.New("serialization error")
	ErrTimestamp         = errors.New("timestamp error")
	ErrEmission          = errors.New("emission calculation error")
)

func invalidStructure(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidStructure, format, args...)
}
