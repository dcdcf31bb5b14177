package scanqueue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cardlog/pkg/types"
)

// FileQueue is the durable Queue implementation: an append-only text file
// holding one record per line in the form "uid,timestamp\n". The file is
// created on first append and removed when the queue fully drains, so its
// absence is equivalent to an empty queue.
type FileQueue struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileQueue creates a FileQueue backed by the file at path. The file
// is not created until the first Append.
func NewFileQueue(path string, logger zerolog.Logger) *FileQueue {
	return &FileQueue{
		path:   path,
		logger: logger.With().Str("component", "FileQueue").Str("path", path).Logger(),
	}
}

// Append writes the record as a new trailing line and syncs it to stable
// storage before returning. Appends are line-atomic: a crash leaves the
// line either fully written or absent.
func (q *FileQueue) Append(record types.ScanRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open for append: %v", ErrStorageFault, err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(record)); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStorageFault, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrStorageFault, err)
	}
	return nil
}

// PeekBatch returns up to n of the oldest records without mutating the
// queue. Malformed lines are skipped, not fatal.
func (q *FileQueue) PeekBatch(n int) ([]types.ScanRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readRecords(n)
}

// RemoveLeading discards the first n records. The remainder is written to
// a temp file in the same directory, synced, and renamed over the
// original; the rename is the sole commit point, so a crash anywhere in
// the sequence leaves either the old or the new queue on disk.
func (q *FileQueue) RemoveLeading(n int) error {
	if n <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.readRecords(0)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	if n >= len(records) {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove drained queue: %v", ErrStorageFault, err)
		}
		q.logger.Debug().Int("removed", len(records)).Msg("Queue fully drained, file removed.")
		return nil
	}

	remainder := records[n:]

	tmp, err := os.CreateTemp(filepath.Dir(q.path), filepath.Base(q.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorageFault, err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range remainder {
		if _, err := w.WriteString(formatLine(rec)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("%w: write remainder: %v", ErrStorageFault, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: flush remainder: %v", ErrStorageFault, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync remainder: %v", ErrStorageFault, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", ErrStorageFault, err)
	}

	if err := os.Rename(tmpName, q.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: commit rename: %v", ErrStorageFault, err)
	}

	q.logger.Debug().Int("removed", n).Int("remaining", len(remainder)).Msg("Removed leading records.")
	return nil
}

// Size reports the number of parseable records currently queued.
func (q *FileQueue) Size() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.readRecords(0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// IsEmpty reports whether the queue holds no records.
func (q *FileQueue) IsEmpty() (bool, error) {
	size, err := q.Size()
	if err != nil {
		return false, err
	}
	return size == 0, nil
}

// readRecords reads up to limit records from the head of the file; a
// limit <= 0 reads everything. Callers hold q.mu.
func (q *FileQueue) readRecords(limit int) ([]types.ScanRecord, error) {
	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open for read: %v", ErrStorageFault, err)
	}
	defer f.Close()

	var records []types.ScanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, ok := parseLine(scanner.Text())
		if !ok {
			q.logger.Warn().Str("line", scanner.Text()).Msg("Skipping malformed queue line.")
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrStorageFault, err)
	}
	return records, nil
}

// formatLine renders a record as its on-disk line. The uid is hex and the
// timestamp carries no newlines, so the format needs no escaping.
func formatLine(rec types.ScanRecord) string {
	return rec.UID + "," + rec.Timestamp + "\n"
}

// parseLine is the single tolerant parser for the on-disk format: an
// empty line or a line without a comma is dropped. The timestamp keeps
// any commas of its own.
func parseLine(line string) (types.ScanRecord, bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return types.ScanRecord{}, false
	}
	uid, ts, found := strings.Cut(line, ",")
	if !found || uid == "" {
		return types.ScanRecord{}, false
	}
	return types.ScanRecord{UID: uid, Timestamp: ts}, true
}
