package credits

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("grant amount must be positive")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnknownPlan         = errors.New("unknown plan")
)
