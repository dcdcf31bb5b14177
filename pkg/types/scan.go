package types

// ScanRecord is a single card-scan event. Records are immutable once
// created: UID is the fixed-case hex identifier read from the card and
// Timestamp is an opaque, already-formatted string supplied by the
// device's clock source at scan time.
type ScanRecord struct {
	UID       string `json:"uid"`
	Timestamp string `json:"time"`
}

// UploadOutcome reports how a single upload cycle was reconciled against
// the queue: Accepted means the collector acknowledged the batch with a
// success status, and Count is the number of records the collector is
// asserted to have durably received.
type UploadOutcome struct {
	Accepted bool
	Count    int
}
