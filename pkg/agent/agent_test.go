package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-cardlog/pkg/agent"
	"github.com/illmade-knight/go-cardlog/pkg/connectivity"
	"github.com/illmade-knight/go-cardlog/pkg/scanqueue"
	"github.com/illmade-knight/go-cardlog/pkg/types"
	"github.com/illmade-knight/go-cardlog/pkg/uploader"
)

// fakeLink reports a fixed link condition to the connectivity manager.
type fakeLink struct {
	configured bool
	connected  bool
}

func (f *fakeLink) Configured() bool { return f.configured }

func (f *fakeLink) StartConnect() error { return nil }

func (f *fakeLink) Connected() bool { return f.connected }

func (f *fakeLink) AttemptDone() (bool, error) { return true, nil }

func (f *fakeLink) Close() {}

type countingCollector struct {
	mu      sync.Mutex
	records []types.ScanRecord
}

func (c *countingCollector) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env struct {
			Records []types.ScanRecord `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.records = append(c.records, env.Records...)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *countingCollector) all() []types.ScanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ScanRecord(nil), c.records...)
}

func newTestAgent(t *testing.T, link connectivity.Link, watchdog func()) (*agent.Agent, *countingCollector, scanqueue.Queue) {
	t.Helper()

	coll := &countingCollector{}
	server := httptest.NewServer(coll.handler())
	t.Cleanup(server.Close)

	logger := zerolog.Nop()
	queue := scanqueue.NewMemoryQueue()
	conn := connectivity.NewManager(link, connectivity.ManagerConfig{
		RetryInterval: 10 * time.Millisecond,
	}, logger)
	engine := uploader.NewEngine(uploader.EngineConfig{
		EndpointURL:    server.URL,
		DeviceID:       "door-7",
		MaxBatch:       50,
		RequestTimeout: time.Second,
	}, queue, conn, logger)

	a := agent.New(agent.Config{
		DeviceID:       "door-7",
		UploadInterval: 30 * time.Millisecond,
		TickInterval:   5 * time.Millisecond,
		WatchdogKick:   watchdog,
	}, queue, conn, engine, nil, logger)
	return a, coll, queue
}

func TestAgent_ScansFlowThroughToCollector(t *testing.T) {
	var kicks atomic.Int64
	a, coll, queue := newTestAgent(t, &fakeLink{configured: true, connected: true}, func() { kicks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.OnScan("04A1B2C301", "2026-08-31T10:00:01Z")
	a.OnScan("04A1B2C302", "2026-08-31T10:00:02Z")
	a.OnScan("04A1B2C303", "2026-08-31T10:00:03Z")

	require.Eventually(t, func() bool {
		return len(coll.all()) == 3
	}, 2*time.Second, 10*time.Millisecond, "scans should reach the collector")

	records := coll.all()
	assert.Equal(t, "04A1B2C301", records[0].UID, "scan order preserved")
	assert.Equal(t, "04A1B2C303", records[2].UID)

	empty, err := queue.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty, "queue drains after acceptance")

	assert.Greater(t, kicks.Load(), int64(0), "watchdog kicked on completed iterations")

	cancel()
	<-done
}

func TestAgent_NoUploadWhileDisconnected(t *testing.T) {
	a, coll, queue := newTestAgent(t, &fakeLink{configured: true, connected: false}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.OnScan("04A1B2C301", "2026-08-31T10:00:01Z")
	a.OnScan("04A1B2C302", "2026-08-31T10:00:02Z")

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, coll.all(), "no transmission without connectivity")
	size, err := queue.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size, "scans stay buffered until the link returns")
}

func TestAgent_StatusSnapshot(t *testing.T) {
	a, _, _ := newTestAgent(t, &fakeLink{configured: true, connected: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return a.Status().Link == types.StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	status := a.Status()
	assert.Equal(t, "door-7", status.DeviceID)
	assert.Equal(t, "connected", status.LinkName)

	cancel()
	<-done
}

func TestAgent_StatusWithUnconfiguredLink(t *testing.T) {
	a, _, _ := newTestAgent(t, &fakeLink{}, nil)

	status := a.Status()
	assert.Equal(t, 0, status.QueueSize)
	assert.False(t, status.QueuePresent)
	assert.Equal(t, "none", status.LastCycle)
}
