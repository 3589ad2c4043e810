package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"capledger/db"
	ledgererr "capledger/errors"
	"capledger/jsonx"
	"capledger/types"
)

// Height sentinels accepted by Query.
const (
	// HeightEarliest selects from the first event ever appended.
	HeightEarliest uint64 = 0
	// HeightLatest selects through the last event ever appended.
	HeightLatest uint64 = ^uint64(0)
)

// EventFilter narrows a Query. A zero Kind matches every kind.
type EventFilter struct {
	Kind       types.EventKind
	FromHeight uint64
	ToHeight   uint64
}

// LogHead records the position of the most recently appended event. It is
// written in the same batch as each append so the ordering check survives
// restarts.
type LogHead struct {
	Height   uint64 `json:"height"`
	Sequence uint64 `json:"sequence"`
}

// EventStore is the append-only event log, the single source of historical
// truth. Events are keyed by big-endian (height, sequence) so backend
// iteration order is log order. Appends that regress the (height, sequence)
// ordering are refused with a corruption error.
type EventStore interface {
	AppendToBatch(batch db.DatabaseBatch, events ...*types.LedgerEvent) error
	Query(filter EventFilter) ([]*types.LedgerEvent, error)
	FirstEvent() (*types.LedgerEvent, error)
	Head() (*LogHead, error)
	MustClose()
}

type GenericEventStore struct {
	mu         sync.RWMutex
	dbProvider db.IterableProvider

	// cached log head; nil until loaded, headLoaded guards empty logs
	head       *LogHead
	headLoaded bool
}

func NewGenericEventStore(dbProvider db.IterableProvider) (*GenericEventStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericEventStore{
		dbProvider: dbProvider,
	}, nil
}

// AppendToBatch stages events into batch in order. Each event must strictly
// follow the current head by (height, sequence); violations return a
// corruption error and stage nothing.
func (es *GenericEventStore) AppendToBatch(batch db.DatabaseBatch, events ...*types.LedgerEvent) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	head, err := es.loadHead()
	if err != nil {
		return err
	}

	for _, ev := range events {
		if !types.ValidEventKind(ev.Kind) {
			return ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
				"refusing to append event with unknown kind %q", ev.Kind)
		}
		if head != nil {
			prev := &types.LedgerEvent{Height: head.Height, Sequence: head.Sequence}
			if ev.Compare(prev) <= 0 {
				return ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
					"event (%d,%d) does not follow log head (%d,%d)",
					ev.Height, ev.Sequence, head.Height, head.Sequence)
			}
		}

		data, err := jsonx.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		batch.Put(eventKey(ev.Height, ev.Sequence), data)

		head = &LogHead{Height: ev.Height, Sequence: ev.Sequence}
	}

	headData, err := jsonx.Marshal(head)
	if err != nil {
		return fmt.Errorf("failed to marshal log head: %w", err)
	}
	batch.Put([]byte(EventKeyLogHead), headData)

	// The batch commit is managed by the caller and may still fail, so the
	// cache must not advance here. Invalidate it and let the next append
	// reload whatever head actually committed.
	es.head = nil
	es.headLoaded = false
	return nil
}

// Query returns the ordered events matching filter. FromHeight and ToHeight
// are inclusive and accept the HeightEarliest/HeightLatest sentinels.
func (es *GenericEventStore) Query(filter EventFilter) ([]*types.LedgerEvent, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	if filter.FromHeight > filter.ToHeight {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeInvalidRequest,
			"from_height %d exceeds to_height %d", filter.FromHeight, filter.ToHeight)
	}

	events := make([]*types.LedgerEvent, 0)
	var iterErr error
	err := es.dbProvider.IteratePrefix([]byte(PrefixEvent), func(key, value []byte) bool {
		var ev types.LedgerEvent
		if err := jsonx.Unmarshal(value, &ev); err != nil {
			iterErr = ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
				"malformed event at key %x: %v", key, err)
			return false
		}
		if ev.Height > filter.ToHeight {
			return false
		}
		if ev.Height < filter.FromHeight {
			return true
		}
		if filter.Kind != "" && ev.Kind != filter.Kind {
			return true
		}
		events = append(events, &ev)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return events, nil
}

// FirstEvent returns the earliest event in the log, or nil when the log is
// empty. Used as the fallback genesis-height discovery strategy.
func (es *GenericEventStore) FirstEvent() (*types.LedgerEvent, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var first *types.LedgerEvent
	var iterErr error
	err := es.dbProvider.IteratePrefix([]byte(PrefixEvent), func(key, value []byte) bool {
		var ev types.LedgerEvent
		if err := jsonx.Unmarshal(value, &ev); err != nil {
			iterErr = ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
				"malformed event at key %x: %v", key, err)
			return false
		}
		first = &ev
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return first, nil
}

// Head returns the position of the last appended event, or nil for an empty log.
func (es *GenericEventStore) Head() (*LogHead, error) {
	// full lock: loadHead fills the cache on first use
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.loadHead()
}

func (es *GenericEventStore) loadHead() (*LogHead, error) {
	if es.headLoaded {
		return es.head, nil
	}

	data, err := es.dbProvider.Get([]byte(EventKeyLogHead))
	if err != nil {
		return nil, fmt.Errorf("failed to read log head: %w", err)
	}
	if data == nil {
		es.headLoaded = true
		return nil, nil
	}

	var head LogHead
	if err := jsonx.Unmarshal(data, &head); err != nil {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
			"malformed log head: %v", err)
	}
	es.head = &head
	es.headLoaded = true
	return es.head, nil
}

func (es *GenericEventStore) MustClose() {
	if err := es.dbProvider.Close(); err != nil {
		panic(fmt.Sprintf("failed to close event store: %v", err))
	}
}

func eventKey(height, sequence uint64) []byte {
	key := make([]byte, len(PrefixEvent)+16)
	copy(key, PrefixEvent)
	binary.BigEndian.PutUint64(key[len(PrefixEvent):], height)
	binary.BigEndian.PutUint64(key[len(PrefixEvent)+8:], sequence)
	return key
}
