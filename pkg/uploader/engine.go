package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cardlog/pkg/scanqueue"
	"github.com/illmade-knight/go-cardlog/pkg/types"
)

// ReadyChecker gates upload cycles on link state. The connectivity
// Manager satisfies it.
type ReadyChecker interface {
	IsReady() bool
}

// EngineConfig holds configuration for the upload Engine.
type EngineConfig struct {
	// EndpointURL is the collector's upload endpoint.
	EndpointURL string
	// DeviceID identifies this device in the upload envelope.
	DeviceID string
	// MaxBatch bounds how many records one cycle drains from the queue.
	MaxBatch int
	// RequestTimeout bounds a single upload request.
	RequestTimeout time.Duration
	// Now supplies the envelope timestamp. Nil means UTC RFC3339.
	Now func() string
}

// DefaultEngineConfig provides sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxBatch:       50,
		RequestTimeout: 15 * time.Second,
	}
}

// Engine drains bounded batches from the scan queue, posts them to the
// collector, and reconciles the queue against the outcome. Delivery is
// at-least-once: a batch whose acknowledgment is lost is re-offered on
// the next cycle, so the collector must tolerate duplicates.
type Engine struct {
	config EngineConfig
	queue  scanqueue.Queue
	ready  ReadyChecker
	client *http.Client
	logger zerolog.Logger
	now    func() string
}

// NewEngine creates an upload Engine over the given queue, gated by the
// given readiness check.
func NewEngine(config EngineConfig, queue scanqueue.Queue, ready ReadyChecker, logger zerolog.Logger) *Engine {
	defaults := DefaultEngineConfig()
	if config.MaxBatch <= 0 {
		logger.Warn().Int("default", defaults.MaxBatch).Msg("MaxBatch was zero or negative, applying default value.")
		config.MaxBatch = defaults.MaxBatch
	}
	if config.RequestTimeout <= 0 {
		logger.Warn().Dur("default", defaults.RequestTimeout).Msg("RequestTimeout was zero or negative, applying default value.")
		config.RequestTimeout = defaults.RequestTimeout
	}
	now := config.Now
	if now == nil {
		now = func() string { return time.Now().UTC().Format(time.RFC3339) }
	}

	return &Engine{
		config: config,
		queue:  queue,
		ready:  ready,
		client: &http.Client{Timeout: config.RequestTimeout},
		logger: logger.With().Str("component", "UploadEngine").Logger(),
		now:    now,
	}
}

// Cycle runs one upload attempt. Rejected cycles leave the queue
// untouched and are not retried faster than the next scheduled interval;
// an accepted cycle removes exactly the records it sent, oldest-first,
// so large backlogs drain incrementally across cycles.
func (e *Engine) Cycle(ctx context.Context) (types.UploadOutcome, error) {
	if !e.ready.IsReady() {
		e.logger.Debug().Msg("Link not ready, skipping upload cycle.")
		return types.UploadOutcome{}, nil
	}

	batch, err := e.queue.PeekBatch(e.config.MaxBatch)
	if err != nil {
		return types.UploadOutcome{}, fmt.Errorf("failed to peek batch: %w", err)
	}
	if len(batch) == 0 {
		// The expected steady state, not an error.
		return types.UploadOutcome{}, nil
	}

	payload, err := json.Marshal(newEnvelope(e.config.DeviceID, e.now(), batch))
	if err != nil {
		return types.UploadOutcome{}, fmt.Errorf("failed to serialize upload envelope: %w", err)
	}

	requestID := uuid.NewString()
	if err := e.transmit(ctx, payload, requestID); err != nil {
		e.logger.Warn().
			Err(err).
			Str("request_id", requestID).
			Int("batch_size", len(batch)).
			Msg("Upload rejected, batch will be re-offered next cycle.")
		return types.UploadOutcome{Accepted: false, Count: len(batch)}, nil
	}

	if err := e.queue.RemoveLeading(len(batch)); err != nil {
		// The collector has the batch but we could not drop it, so the
		// next cycle re-sends it. At-least-once covers this.
		e.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to remove uploaded records from queue.")
		return types.UploadOutcome{Accepted: true, Count: len(batch)}, err
	}

	e.logger.Info().
		Str("request_id", requestID).
		Int("batch_size", len(batch)).
		Msg("Successfully uploaded batch.")
	return types.UploadOutcome{Accepted: true, Count: len(batch)}, nil
}

// transmit posts the payload and classifies the outcome: any 2xx status
// is acceptance, everything else (including transport failures) is a
// rejection. The response body is informational only.
func (e *Engine) transmit(ctx context.Context, payload []byte, requestID string) error {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload transport failure: %w", err)
	}
	defer resp.Body.Close()

	body := readTruncated(resp.Body, 256)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("collector returned status %d: %s", resp.StatusCode, body)
	}

	e.logger.Debug().Int("status", resp.StatusCode).Str("body", body).Msg("Collector response.")
	return nil
}

// readTruncated drains up to limit bytes of the body for logging.
func readTruncated(r io.Reader, limit int64) string {
	b, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return ""
	}
	return string(b)
}
