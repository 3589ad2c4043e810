package interfaces

import (
	"context"

	"capledger/store"
	"capledger/types"
)

// EventFeed is the consumer-side seam over the authoritative event log. The
// feed must deliver events ordered by (height, sequence), and the prefix up
// to any queried height is final once returned.
type EventFeed interface {
	Query(filter store.EventFilter) ([]*types.LedgerEvent, error)
	FirstEvent() (*types.LedgerEvent, error)
	Head() (*store.LogHead, error)
}

// SnapshotProvider is the snapshot query interface exposed to UI and export
// collaborators. Pass replay.HeightCurrent for a snapshot at the current
// height.
type SnapshotProvider interface {
	GetCapTable(ctx context.Context, height uint64) (*types.CapTableSnapshot, error)
}
