package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/observer"
)

type messageLog struct {
	mu       sync.Mutex
	messages []string
}

func (l *messageLog) PostMessage(message string) { l.add(message) }
func (l *messageLog) Log(message string)         { l.add(message) }

func (l *messageLog) add(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

func (l *messageLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

type fakePageEnv struct {
	mu        sync.Mutex
	userAgent string
	rn        *messageLog
	webkit    *messageLog
	console   *messageLog
}

func (e *fakePageEnv) TimeOrigin() float64   { return 1700000000000 }
func (e *fakePageEnv) URL() string           { return "https://shop.example/checkout" }
func (e *fakePageEnv) UserAgent() string     { return e.userAgent }
func (e *fakePageEnv) Console() port.Console { return e.console }

func (e *fakePageEnv) HasReactNativeBridge() bool { return e.ReactNativeBridge() != nil }
func (e *fakePageEnv) HasWebKitBridge() bool      { return e.WebKitBridge() != nil }

func (e *fakePageEnv) ReactNativeBridge() port.Bridge {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rn == nil {
		return nil
	}
	return e.rn
}

func (e *fakePageEnv) WebKitBridge() port.Bridge {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.webkit == nil {
		return nil
	}
	return e.webkit
}

func (e *fakePageEnv) removeWebKit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.webkit = nil
}

type failingObserver struct{}

func (failingObserver) Observe(context.Context, string, bool) (<-chan []entity.RawTimingEntry, error) {
	return nil, errors.New("observer unavailable")
}

func decodeAll(t *testing.T, messages []string) []entity.Envelope {
	t.Helper()
	envelopes := make([]entity.Envelope, 0, len(messages))
	for _, m := range messages {
		envelope, err := entity.DecodeEnvelope(m)
		if err != nil {
			t.Fatalf("DecodeEnvelope(%q) error = %v", m, err)
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes
}

func TestPageSession_ReactNative(t *testing.T) {
	env := &fakePageEnv{rn: &messageLog{}, console: &messageLog{}}
	timeline := observer.NewTimeline(0)
	pipeline := newMockPipeline()

	// запись до старта должна прийти через буфер
	_ = timeline.Record(entity.RawTimingEntry{Name: "first-contentful-paint", EntryType: "paint", StartTime: 812.6})

	session := NewPageSession("s1", env, timeline, pipeline, testLogger())
	if session.Target() != valueobject.ReactNative {
		t.Fatalf("Target() = %s, want REACT_NATIVE", session.Target())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := session.Start(ctx); !errors.Is(err, ErrSessionStarted) {
		t.Fatalf("second Start() error = %v, want ErrSessionStarted", err)
	}

	console := env.console.snapshot()
	if len(console) != 1 || console[0] != StartupBanner {
		t.Fatalf("console = %v, want banner only", console)
	}

	waitFor(t, "buffered paint", func() bool { return len(env.rn.snapshot()) == 1 })

	src := []entity.LayoutShiftSource{{Node: "img"}}
	_ = timeline.Record(
		entity.RawTimingEntry{EntryType: "layout-shift", StartTime: 100, Value: entity.Float64(0.1), Sources: src},
		entity.RawTimingEntry{EntryType: "layout-shift", StartTime: 200, Value: entity.Float64(0.2), Sources: src},
	)
	_ = timeline.Record(entity.RawTimingEntry{Name: "mousedown", EntryType: "first-input", StartTime: 120.7, ProcessingStart: entity.Float64(150.2)})

	waitFor(t, "all envelopes", func() bool { return len(env.rn.snapshot()) == 4 })

	timeline.Close()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := session.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	var clsSizes []int
	var fid, fcp *entity.NormalizedMetric
	for _, envelope := range decodeAll(t, env.rn.snapshot()) {
		if envelope.Timestamp != 1700000000000 || envelope.URL != "https://shop.example/checkout" {
			t.Fatalf("unexpected envelope header: %+v", envelope)
		}
		switch envelope.Vitals[0].Kind {
		case valueobject.CLS:
			clsSizes = append(clsSizes, len(envelope.Vitals))
		case valueobject.FID:
			fid = &envelope.Vitals[0]
		case valueobject.FCP:
			fcp = &envelope.Vitals[0]
		}
	}

	if len(clsSizes) != 2 || clsSizes[0] != 1 || clsSizes[1] != 2 {
		t.Fatalf("CLS envelopes sizes = %v, want [1 2]", clsSizes)
	}
	if fid == nil || fid.Duration != 29 || fid.StartTimestamp != 1700000000120 {
		t.Fatalf("unexpected FID metric: %+v", fid)
	}
	if fcp == nil || fcp.Duration != 812 {
		t.Fatalf("unexpected FCP metric: %+v", fcp)
	}

	if got := pipeline.get(pipeline.sent, "REACT_NATIVE"); got != 4 {
		t.Fatalf("EnvelopeSent = %d, want 4", got)
	}
	if got := pipeline.get(pipeline.batches, "layout-shift"); got != 1 {
		t.Fatalf("layout-shift batches = %d, want 1", got)
	}
	if len(env.console.snapshot()) != 1 {
		t.Fatal("nothing but the banner may reach the console")
	}
}

func TestPageSession_BridgeDisappears(t *testing.T) {
	env := &fakePageEnv{
		userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X)",
		webkit:    &messageLog{},
		console:   &messageLog{},
	}
	timeline := observer.NewTimeline(0)
	defer timeline.Close()
	pipeline := newMockPipeline()

	session := NewPageSession("", env, timeline, pipeline, testLogger())
	if session.Target() != valueobject.IOS {
		t.Fatalf("Target() = %s, want IOS", session.Target())
	}
	if session.ID() == "" {
		t.Fatal("session id must be generated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_ = timeline.Record(entity.RawTimingEntry{Name: "lcp", EntryType: "largest-contentful-paint", StartTime: 2400})
	waitFor(t, "webkit delivery", func() bool { return len(env.webkit.snapshot()) == 1 })

	env.removeWebKit()
	_ = timeline.Record(entity.RawTimingEntry{Name: "lcp", EntryType: "largest-contentful-paint", StartTime: 3100})
	waitFor(t, "console fallback", func() bool { return len(env.console.snapshot()) == 2 })

	fallback := env.console.snapshot()[1]
	if !IsVitalsMessage(fallback) {
		t.Fatalf("console fallback is not an envelope: %s", fallback)
	}
	if got := pipeline.get(pipeline.fallbacks, "IOS"); got != 1 {
		t.Fatalf("TransportFallback = %d, want 1", got)
	}
	if got := pipeline.get(pipeline.sent, "IOS"); got != 2 {
		t.Fatalf("EnvelopeSent = %d, want 2", got)
	}
}

func TestPageSession_StopsOnContextCancel(t *testing.T) {
	env := &fakePageEnv{userAgent: "Android", console: &messageLog{}}
	timeline := observer.NewTimeline(0)
	defer timeline.Close()

	session := NewPageSession("s3", env, timeline, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
}

func TestPageSession_ObserveFailure(t *testing.T) {
	env := &fakePageEnv{console: &messageLog{}}
	session := NewPageSession("s4", env, failingObserver{}, nil, testLogger())

	if err := session.Start(context.Background()); err == nil {
		t.Fatal("expected Start() error")
	}
	select {
	case <-session.Done():
	default:
		t.Fatal("Done() must be closed after a failed start")
	}
	if len(env.console.snapshot()) != 0 {
		t.Fatal("banner must not be logged when start fails")
	}
}
