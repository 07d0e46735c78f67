package schema

import "errors"

var (
	// ErrInvalidCommand indicates a malformed command declaration.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrNilHandler indicates a command or fallback without a handler.
	ErrNilHandler = errors.New("handler is required")
	// ErrDuplicateKeyword indicates a keyword is already routed to a command.
	ErrDuplicateKeyword = errors.New("duplicated command keyword")
	// ErrDuplicateName indicates a command name collides with a command or group name.
	ErrDuplicateName = errors.New("duplicated command name")
	// ErrDuplicateContext indicates a context name is already registered.
	ErrDuplicateContext = errors.New("duplicated context name")
	// ErrUnresolvedDependency indicates a command depends on an unregistered context.
	ErrUnresolvedDependency = errors.New("unrecognized context name")
	// ErrUnknownContext indicates a lookup of a context that was never registered.
	ErrUnknownContext = errors.New("context not found")
	// ErrAlreadyRegistered indicates a default status was declared after its command.
	ErrAlreadyRegistered = errors.New("command already registered")
	// ErrFallbackFrozen indicates a fallback was registered after the chain was read.
	ErrFallbackFrozen = errors.New("fallback registry is frozen")
	// ErrReferenceUnderflow indicates mismatched open/close bookkeeping.
	ErrReferenceUnderflow = errors.New("context reference count underflow")
)
