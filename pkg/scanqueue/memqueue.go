package scanqueue

import (
	"sync"

	"github.com/illmade-knight/go-cardlog/pkg/types"
)

// MemoryQueue is a non-durable Queue for tests and diskless development.
// It mirrors FileQueue's semantics without touching storage, so records
// do not survive a restart.
type MemoryQueue struct {
	mu      sync.Mutex
	records []types.ScanRecord
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Append adds the record at the tail.
func (q *MemoryQueue) Append(record types.ScanRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, record)
	return nil
}

// PeekBatch returns up to n of the oldest records; n <= 0 returns all.
func (q *MemoryQueue) PeekBatch(n int) ([]types.ScanRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || n > len(q.records) {
		n = len(q.records)
	}
	batch := make([]types.ScanRecord, n)
	copy(batch, q.records[:n])
	return batch, nil
}

// RemoveLeading discards the first n records.
func (q *MemoryQueue) RemoveLeading(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if n >= len(q.records) {
		q.records = nil
		return nil
	}
	q.records = append([]types.ScanRecord(nil), q.records[n:]...)
	return nil
}

// Size reports the number of queued records.
func (q *MemoryQueue) Size() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records), nil
}

// IsEmpty reports whether the queue holds no records.
func (q *MemoryQueue) IsEmpty() (bool, error) {
	size, _ := q.Size()
	return size == 0, nil
}
