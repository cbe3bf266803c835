package exception

import "github.com/yanun0323/errors"

// Shared sentinels. Packages wrap these with context so callers can branch
// with errors.Is across layer boundaries.
var (
	ErrUnknownTopic    = errors.New("unknown topic")
	ErrShortPayload    = errors.New("short payload")
	ErrTypeUnsupported = errors.New("type unsupported")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrConnectionClose = errors.New("connection closed")
	ErrInvalidArgument = errors.New("invalid argument")
)
