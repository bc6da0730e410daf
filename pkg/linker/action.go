package linker

import (
	"fmt"

	"github.com/surrealdb/surrealport/pkg/models"
)

// Kind is the kind of write an Action performs. The declaration order is the
// order Resolve applies queued actions of one record in.
type Kind int

const (
	Associate Kind = iota + 1
	Attach
	Update
	SearchReplace
	Morph
)

// Kinds lists every kind in resolve order.
var Kinds = []Kind{Associate, Attach, Update, SearchReplace, Morph}

func (k Kind) String() string {
	switch k {
	case Associate:
		return "associate"
	case Attach:
		return "attach"
	case Update:
		return "update"
	case SearchReplace:
		return "search_replace"
	case Morph:
		return "morph"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Action is a write on the record Owner of type Type that needs the real id
// of Referred.
//
// Field is a relation name for Associate, Attach and Morph, and a dot path
// for Update and SearchReplace. ReferredType is only set for Morph and holds
// the discriminator value. Token is only set for SearchReplace.
type Action struct {
	Kind         Kind
	Type         models.TypeTag
	Owner        models.SurrogateID
	Field        string
	Referred     models.SurrogateID
	ReferredType string
	Token        Token
}

// Token locates the text a SearchReplace rewrites with the real id. With a
// Pattern, only capture group 1 of its matches is rewritten when it equals
// Text; Prefix is the surrogate id prefix the pattern is compiled for.
// Without one, every whole occurrence of Text is.
type Token struct {
	Text    string
	Pattern string
	Prefix  string
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s(%s).%s -> %s", a.Kind, a.Type, a.Owner, a.Field, a.Referred)
}

// Outcome reports what an action constructor did.
type Outcome int

const (
	// Applied: the target was bound and the write happened.
	Applied Outcome = iota + 1
	// Deferred: the target was unbound and the action was queued.
	Deferred
	// Vetoed: the target was bound but a before hook skipped the write.
	Vetoed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Deferred:
		return "deferred"
	case Vetoed:
		return "vetoed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}
