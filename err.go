package surrealport

import (
	"github.com/surrealdb/surrealport/pkg/constants"
	"github.com/surrealdb/surrealport/pkg/serializer"
)

// Errors returned by Port methods. Test them with errors.Is.
var (
	ErrBindCollision       = constants.ErrBindCollision
	ErrUnresolvedOwner     = constants.ErrUnresolvedOwner
	ErrUnresolvedReference = constants.ErrUnresolvedReference
	ErrRecordNotFound      = constants.ErrRecordNotFound
	ErrMalformedInput      = constants.ErrMalformedInput
	ErrInvalidRuleShape    = constants.ErrInvalidRuleShape
	ErrNoRoot              = serializer.ErrNoRoot
)
