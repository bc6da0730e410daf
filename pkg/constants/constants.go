package constants

// Wire constants
const (
	// DumpFormat is the magic header of a full CBOR dump.
	DumpFormat = "SURPORT1"

	// PlaceholderKey fills the key column of a deferred polymorphic
	// reference until the resolve pass writes the real id.
	PlaceholderKey = 0
)
