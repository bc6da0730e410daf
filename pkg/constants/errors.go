package constants

import "errors"

// Linker errors
var (
	// ErrBindCollision is returned when a surrogate id that is already bound
	// to a real id is bound again.
	ErrBindCollision = errors.New("surrogate id already bound")
	// ErrUnresolvedOwner is returned at resolve time when the record owning
	// queued actions was never created.
	ErrUnresolvedOwner = errors.New("owner of deferred actions was never bound")
	// ErrUnresolvedReference is returned at resolve time when a deferred
	// action still refers to an unbound surrogate id.
	ErrUnresolvedReference = errors.New("deferred action refers to an unbound surrogate id")
	// ErrRecordNotFound is returned when a bound real id does not match a
	// stored record.
	ErrRecordNotFound = errors.New("record not found")
)

// Input errors
var (
	ErrMalformedInput   = errors.New("malformed input")
	ErrInvalidRuleShape = errors.New("invalid blueprint rule shape")
)
