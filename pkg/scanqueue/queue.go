package scanqueue

import (
	"errors"

	"github.com/illmade-knight/go-cardlog/pkg/types"
)

// ErrStorageFault is returned when the queue's backing storage cannot be
// opened, written, or replaced. The triggering operation aborts without
// partial mutation; the caller logs and drops the event.
var ErrStorageFault = errors.New("scan queue storage fault")

// Queue is a durable, ordered log of unsent scan records. Insertion order
// is scan order. Records leave the queue only through RemoveLeading after
// the collector has acknowledged a batch, never individually.
type Queue interface {
	// Append writes the record as a new trailing entry. The record is
	// durable on stable storage before Append returns.
	Append(record types.ScanRecord) error

	// PeekBatch returns up to n of the oldest records without mutating
	// the queue. Fewer than n are returned if the queue holds fewer; an
	// empty or absent queue yields an empty slice. n <= 0 returns the
	// whole queue.
	PeekBatch(n int) ([]types.ScanRecord, error)

	// RemoveLeading atomically discards the first n records, preserving
	// the relative order of the remainder. n == 0 and removal from an
	// empty queue are no-ops. A crash mid-removal leaves the queue in
	// either its pre-call or post-call state, never a mix.
	RemoveLeading(n int) error

	// Size reports the number of queued records. Diagnostic only; the
	// upload engine decides from PeekBatch results, not from Size.
	Size() (int, error)

	// IsEmpty reports whether the queue holds no records. Diagnostic only.
	IsEmpty() (bool, error)
}
