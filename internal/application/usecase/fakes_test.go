package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

type mockRepository struct {
	mu         sync.Mutex
	saved      []*entity.VitalRecord
	saveErr    error
	findResult []*entity.VitalRecord
	findErr    error
	findCalls  int
	lastQuery  repository.VitalQuery
	latest     []*entity.VitalRecord
	latestErr  error
	latestCall int
}

func (m *mockRepository) SaveBatch(_ context.Context, records []*entity.VitalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, records...)
	return nil
}

func (m *mockRepository) Find(_ context.Context, query repository.VitalQuery) ([]*entity.VitalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	m.lastQuery = query
	return m.findResult, m.findErr
}

func (m *mockRepository) FindLatestByURL(_ context.Context, _ string) ([]*entity.VitalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestCall++
	return m.latest, m.latestErr
}

func (m *mockRepository) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (m *mockRepository) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// mockCache хранит значения в JSON, как Redis
type mockCache struct {
	mu     sync.Mutex
	items  map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *mockCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	data, ok := c.items[key]
	if !ok {
		return port.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *mockCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	c.ttls[key] = ttl
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *mockCache) Close() error { return nil }

func (c *mockCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type mockPublisher struct {
	events []*dto.VitalsEventDTO
	err    error
}

func (p *mockPublisher) PublishVitals(_ context.Context, event *dto.VitalsEventDTO) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *mockPublisher) Close() error { return nil }

type mockMetricsPublisher struct {
	records []*entity.VitalRecord
	err     error
}

func (p *mockMetricsPublisher) PublishVitals(_ context.Context, records []*entity.VitalRecord) error {
	p.records = append(p.records, records...)
	return p.err
}

func (p *mockMetricsPublisher) Flush(context.Context) error { return nil }

type archiveCall struct {
	key  string
	body []byte
}

type mockArchive struct {
	calls []archiveCall
	err   error
}

func (a *mockArchive) Archive(_ context.Context, key string, body []byte) (string, error) {
	a.calls = append(a.calls, archiveCall{key: key, body: body})
	if a.err != nil {
		return "", a.err
	}
	return "https://storage.example/" + key, nil
}

func (a *mockArchive) List(context.Context, string, int) ([]port.ArchivedEnvelope, error) {
	return nil, errors.New("not implemented")
}

type mockNotifier struct {
	events []*dto.VitalsEventDTO
}

func (n *mockNotifier) BroadcastVitals(event *dto.VitalsEventDTO) { n.events = append(n.events, event) }
func (n *mockNotifier) ClientCount() int                         { return 0 }

type mockPipeline struct {
	mu        sync.Mutex
	batches   map[string]int
	sent      map[string]int
	dropped   map[string]int
	fallbacks map[string]int
	outcomes  map[string]int
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{
		batches:   make(map[string]int),
		sent:      make(map[string]int),
		dropped:   make(map[string]int),
		fallbacks: make(map[string]int),
		outcomes:  make(map[string]int),
	}
}

func (p *mockPipeline) BatchObserved(entryType string, _ int) { p.inc(p.batches, entryType, 1) }
func (p *mockPipeline) EnvelopeSent(target string)            { p.inc(p.sent, target, 1) }
func (p *mockPipeline) EntryDropped(reason string, n int)     { p.inc(p.dropped, reason, n) }
func (p *mockPipeline) TransportFallback(target string)       { p.inc(p.fallbacks, target, 1) }
func (p *mockPipeline) DeliveryProcessed(target, outcome string) {
	p.inc(p.outcomes, target+"/"+outcome, 1)
}

func (p *mockPipeline) inc(m map[string]int, key string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m[key] += n
}

func (p *mockPipeline) get(m map[string]int, key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return m[key]
}
