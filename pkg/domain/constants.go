package domain

// Default names used when a constraint field is unset.
const (
	DefaultDomain = "default"
	DefaultStyle  = "default"
)

// Wildcard is the query kind that matches any node kind.
const Wildcard = "*"

// Node kinds produced by the semantic classifier. The list is informational:
// rule queries may name any kind the host's classifier emits.
const (
	KindRelation    = "relation"
	KindFraction    = "fraction"
	KindIdentifier  = "identifier"
	KindOperator    = "operator"
	KindNumber      = "number"
	KindInfixOp     = "infixop"
	KindSuperscript = "superscript"
	KindSubscript   = "subscript"
	KindSqrt        = "sqrt"
	KindFenced      = "fenced"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// Prosody keys understood by the assembler.
const (
	ProsodyPitch  = "pitch"
	ProsodyRate   = "rate"
	ProsodyVolume = "volume"
	ProsodyPause  = "pause"
)
