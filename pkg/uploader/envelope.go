package uploader

import "github.com/illmade-knight/go-cardlog/pkg/types"

// statusNoScans marks an envelope carrying no records, so the collector
// can distinguish "nothing to report" from a report that never arrived.
const statusNoScans = "no scans"

// envelope is the wire payload for one upload request.
type envelope struct {
	Device    string             `json:"device"`
	Timestamp string             `json:"timestamp"`
	Records   []types.ScanRecord `json:"records"`
	Status    string             `json:"status,omitempty"`
}

// newEnvelope builds the upload payload. An empty batch gets the
// explicit no-scans marker rather than a bare empty array.
func newEnvelope(deviceID, timestamp string, records []types.ScanRecord) envelope {
	env := envelope{
		Device:    deviceID,
		Timestamp: timestamp,
		Records:   records,
	}
	if len(records) == 0 {
		env.Records = []types.ScanRecord{}
		env.Status = statusNoScans
	}
	return env
}
