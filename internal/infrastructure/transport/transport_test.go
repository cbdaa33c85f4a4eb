package transport

import (
	"errors"
	"sync"
	"testing"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSink) PostMessage(message string) { s.record(message) }
func (s *recordingSink) Log(message string)         { s.record(message) }

func (s *recordingSink) record(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakeEnv struct {
	rn      *recordingSink
	webkit  *recordingSink
	console *recordingSink
}

func newFakeEnv(rn, webkit bool) *fakeEnv {
	env := &fakeEnv{console: &recordingSink{}}
	if rn {
		env.rn = &recordingSink{}
	}
	if webkit {
		env.webkit = &recordingSink{}
	}
	return env
}

func (e *fakeEnv) TimeOrigin() float64        { return 0 }
func (e *fakeEnv) URL() string                { return "https://shop.example/" }
func (e *fakeEnv) UserAgent() string          { return "" }
func (e *fakeEnv) HasReactNativeBridge() bool { return e.rn != nil }
func (e *fakeEnv) HasWebKitBridge() bool      { return e.webkit != nil }
func (e *fakeEnv) Console() port.Console      { return e.console }

func (e *fakeEnv) ReactNativeBridge() port.Bridge {
	if e.rn == nil {
		return nil
	}
	return e.rn
}

func (e *fakeEnv) WebKitBridge() port.Bridge {
	if e.webkit == nil {
		return nil
	}
	return e.webkit
}

func TestNew_RoutesByTarget(t *testing.T) {
	tests := []struct {
		name        string
		target      valueobject.DeliveryTarget
		wantRN      int
		wantWebKit  int
		wantConsole int
	}{
		{name: "react native", target: valueobject.ReactNative, wantRN: 1},
		{name: "ios", target: valueobject.IOS, wantWebKit: 1},
		{name: "android", target: valueobject.Android, wantConsole: 1},
		{name: "default", target: valueobject.Default, wantConsole: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFakeEnv(true, true)
			New(tt.target, env, nil).Send(`{"vt":[]}`)

			if got := env.rn.count(); got != tt.wantRN {
				t.Fatalf("react native messages = %d, want %d", got, tt.wantRN)
			}
			if got := env.webkit.count(); got != tt.wantWebKit {
				t.Fatalf("webkit messages = %d, want %d", got, tt.wantWebKit)
			}
			if got := env.console.count(); got != tt.wantConsole {
				t.Fatalf("console messages = %d, want %d", got, tt.wantConsole)
			}
		})
	}
}

func TestBridgeTransport_FallsBackToConsole(t *testing.T) {
	for _, target := range []valueobject.DeliveryTarget{valueobject.ReactNative, valueobject.IOS} {
		t.Run(string(target), func(t *testing.T) {
			env := newFakeEnv(false, false)

			var fallbacks []error
			tr := New(target, env, func(got valueobject.DeliveryTarget, err error) {
				if got != target {
					t.Errorf("fallback target = %q, want %q", got, target)
				}
				fallbacks = append(fallbacks, err)
			})
			tr.Send("m1")

			if env.console.count() != 1 || env.console.messages[0] != "m1" {
				t.Fatalf("expected message in console, got %v", env.console.messages)
			}
			if len(fallbacks) != 1 || !errors.Is(fallbacks[0], ErrTransportUnavailable) {
				t.Fatalf("expected one ErrTransportUnavailable, got %v", fallbacks)
			}
		})
	}
}

func TestBridgeTransport_ChecksPresenceOnEverySend(t *testing.T) {
	env := newFakeEnv(true, false)
	tr := New(valueobject.ReactNative, env, nil)

	tr.Send("first")
	bridge := env.rn
	env.rn = nil
	tr.Send("second")

	if bridge.count() != 1 || bridge.messages[0] != "first" {
		t.Fatalf("bridge messages = %v", bridge.messages)
	}
	if env.console.count() != 1 || env.console.messages[0] != "second" {
		t.Fatalf("console messages = %v", env.console.messages)
	}
}
