package enums

// UpsertMode selects how a cart item quantity is applied.
type UpsertMode string

const (
	// UpsertModeIncrement adds the requested quantity to the existing line.
	UpsertModeIncrement UpsertMode = "INCREMENT"
	// UpsertModeSet replaces the existing quantity; zero removes the line.
	UpsertModeSet UpsertMode = "SET"
)

var upsertModes = newSet(UpsertModeIncrement, UpsertModeSet)

func (m UpsertMode) String() string { return string(m) }

func (m UpsertMode) IsValid() bool { return upsertModes.contains(m) }
