package store

// Declare database key prefix for objects
const (
	PrefixAccount = "account:"

	PrefixEvent     = "event:"
	EventKeyLogHead = "event_meta:log_head"

	KeyLedgerMeta = "ledger_meta:state"
)
