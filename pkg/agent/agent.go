package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cardlog/pkg/connectivity"
	"github.com/illmade-knight/go-cardlog/pkg/reader"
	"github.com/illmade-knight/go-cardlog/pkg/scanqueue"
	"github.com/illmade-knight/go-cardlog/pkg/types"
	"github.com/illmade-knight/go-cardlog/pkg/uploader"
)

// StatusPublisher carries best-effort diagnostic messages. The paho link
// satisfies it; a nil publisher disables status pings.
type StatusPublisher interface {
	Publish(topic string, payload []byte) error
}

// Config holds the control-loop settings.
type Config struct {
	// DeviceID identifies the device in status topics.
	DeviceID string
	// UploadInterval is the period between upload cycles.
	UploadInterval time.Duration
	// TickInterval is the loop granularity: connectivity is advanced
	// and pending work is checked once per tick.
	TickInterval time.Duration
	// PingInterval is the period between status pings. Zero disables.
	PingInterval time.Duration
	// Now stamps incoming scans. Nil means UTC RFC3339.
	Now func() string
	// WatchdogKick, if set, is invoked after every completed loop
	// iteration so a stuck transmission is detectable externally.
	WatchdogKick func()
}

// Agent owns the scan queue, the connectivity state machine, and the
// upload engine, and drives them from a single control-loop goroutine.
// All queue mutations happen on that goroutine, so connectivity state is
// always advanced before an upload cycle consults it and a scan arriving
// mid-cycle is never part of the batch already in flight.
type Agent struct {
	config    Config
	queue     scanqueue.Queue
	conn      *connectivity.Manager
	engine    *uploader.Engine
	publisher StatusPublisher
	logger    zerolog.Logger
	now       func() string

	scanChan chan types.ScanRecord
	wg       sync.WaitGroup

	mu          sync.Mutex
	linkState   types.LinkState
	lastOutcome types.UploadOutcome
	lastCycle   string
}

// New assembles an Agent. The publisher may be nil.
func New(
	config Config,
	queue scanqueue.Queue,
	conn *connectivity.Manager,
	engine *uploader.Engine,
	publisher StatusPublisher,
	logger zerolog.Logger,
) *Agent {
	if config.TickInterval <= 0 {
		config.TickInterval = 250 * time.Millisecond
	}
	if config.UploadInterval <= 0 {
		config.UploadInterval = 5 * time.Second
	}
	now := config.Now
	if now == nil {
		now = func() string { return time.Now().UTC().Format(time.RFC3339) }
	}

	return &Agent{
		config:    config,
		queue:     queue,
		conn:      conn,
		engine:    engine,
		publisher: publisher,
		logger:    logger.With().Str("component", "Agent").Logger(),
		now:       now,
		scanChan:  make(chan types.ScanRecord, 64),
		lastCycle: "none",
	}
}

// OnScan ingests one scan event. The record is handed to the control
// loop, which appends it durably; the call blocks only while the loop is
// busy with a bounded operation.
func (a *Agent) OnScan(uid, timestamp string) {
	a.scanChan <- types.ScanRecord{UID: uid, Timestamp: timestamp}
}

// Run drives the control loop until the context is cancelled. The
// in-flight iteration always completes before Run returns, so a cycle's
// outcome is reconciled before shutdown.
func (a *Agent) Run(ctx context.Context) {
	a.logger.Info().
		Dur("upload_interval", a.config.UploadInterval).
		Dur("tick_interval", a.config.TickInterval).
		Msg("Starting control loop...")

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	var lastUpload, lastPing time.Time

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Control loop stopping.")
			return

		case rec := <-a.scanChan:
			a.ingest(rec)

		case <-ticker.C:
			// Connectivity advances every tick, regardless of whether
			// an upload cycle runs.
			state := a.conn.Tick()
			a.setLinkState(state)

			if time.Since(lastUpload) >= a.config.UploadInterval {
				lastUpload = time.Now()
				a.runCycle(ctx)
			}

			if a.config.PingInterval > 0 && time.Since(lastPing) >= a.config.PingInterval {
				lastPing = time.Now()
				a.publishStatus()
			}

			if a.config.WatchdogKick != nil {
				a.config.WatchdogKick()
			}
		}
	}
}

// ReadLoop pumps scans from a TagReader into the agent until the context
// is cancelled. Run it on its own goroutine.
func (a *Agent) ReadLoop(ctx context.Context, r reader.TagReader) {
	a.wg.Add(1)
	defer a.wg.Done()

	for {
		uid, err := r.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error().Err(err).Msg("Tag read failed.")
			time.Sleep(time.Second)
			continue
		}
		if uid == "" {
			continue
		}
		a.logger.Info().Str("uid", uid).Msg("Tag read.")
		a.OnScan(uid, a.now())
	}
}

// Wait blocks until the read pump has stopped.
func (a *Agent) Wait() {
	a.wg.Wait()
}

// Status returns a read-only snapshot for diagnostic surfaces.
func (a *Agent) Status() types.DeviceStatus {
	size, err := a.queue.Size()
	present := err == nil && size > 0

	a.mu.Lock()
	defer a.mu.Unlock()
	return types.DeviceStatus{
		DeviceID:     a.config.DeviceID,
		Link:         a.linkState,
		LinkName:     a.linkState.String(),
		QueueSize:    size,
		QueuePresent: present,
		LastCycle:    a.lastCycle,
		LastUploaded: a.lastOutcome.Count,
	}
}

// ingest appends a scan durably. Append failures are logged and the
// event is dropped; there is no retry buffer for storage faults.
func (a *Agent) ingest(rec types.ScanRecord) {
	if err := a.queue.Append(rec); err != nil {
		a.logger.Error().Err(err).Str("uid", rec.UID).Msg("Failed to append scan, event dropped.")
		return
	}
	a.logger.Debug().Str("uid", rec.UID).Msg("Scan appended to queue.")
}

func (a *Agent) runCycle(ctx context.Context) {
	outcome, err := a.engine.Cycle(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Upload cycle reported an error.")
	}

	a.mu.Lock()
	a.lastOutcome = outcome
	switch {
	case outcome.Count == 0:
		a.lastCycle = "skipped"
	case outcome.Accepted:
		a.lastCycle = "accepted"
	default:
		a.lastCycle = "rejected"
	}
	a.mu.Unlock()
}

func (a *Agent) setLinkState(state types.LinkState) {
	a.mu.Lock()
	a.linkState = state
	a.mu.Unlock()
}

// publishStatus sends a best-effort diagnostic ping over the link.
func (a *Agent) publishStatus() {
	if a.publisher == nil {
		return
	}

	payload, err := json.Marshal(a.Status())
	if err != nil {
		return
	}
	topic := fmt.Sprintf("cardlog/status/node/%s/ping", a.config.DeviceID)
	if err := a.publisher.Publish(topic, payload); err != nil {
		a.logger.Debug().Err(err).Msg("Status ping not delivered.")
	}
}
