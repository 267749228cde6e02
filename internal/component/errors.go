package component

import "errors"

// Caller-input errors, surfaced immediately and never retried
var (
	ErrUnknownComponent         = errors.New("unknown component")
	ErrUnsupportedAction        = errors.New("unsupported action")
	ErrUnknownCredentialPurpose = errors.New("unknown credential purpose")
)

// Registration errors, only raised while building the registry at startup
var (
	ErrInvalidDescriptor  = errors.New("invalid component descriptor")
	ErrDuplicateComponent = errors.New("duplicate component")
)
