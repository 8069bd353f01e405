package types

// Validator is implemented by entities and DTOs to self-validate.
type Validator interface {
	Validate() error
}

// Logger is the minimal structured logging interface used by the delivery
// channels and ledger. *slog.Logger satisfies Info/Error/Warn directly; an
// adapter is needed only because With returns the concrete slog type.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
