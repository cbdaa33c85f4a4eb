package remotepage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

type recordingSink struct {
	deliveries []port.Delivery
	err        error
}

func (s *recordingSink) Deliver(ctx context.Context, d port.Delivery) error {
	s.deliveries = append(s.deliveries, d)
	return s.err
}

func TestEnvironment_BridgesFollowHello(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)

	bare := NewEnvironment(context.Background(), "p", "t", Hello{URL: "u"}, &recordingSink{}, nil, log)
	if bare.HasReactNativeBridge() || bare.HasWebKitBridge() {
		t.Error("bridges must be absent when hello does not announce them")
	}
	if bare.ReactNativeBridge() != nil || bare.WebKitBridge() != nil {
		t.Error("absent bridges must be nil interfaces")
	}

	sink := &recordingSink{}
	env := NewEnvironment(context.Background(), "page-1", "checkout", Hello{
		URL:               "https://a.example/",
		ReactNativeBridge: true,
		WebKitBridge:      true,
	}, sink, nil, log)

	env.ReactNativeBridge().PostMessage("rn")
	env.WebKitBridge().PostMessage("wk")

	want := []port.Delivery{
		{PageID: "page-1", Tag: "checkout", Target: valueobject.ReactNative, Message: "rn"},
		{PageID: "page-1", Tag: "checkout", Target: valueobject.IOS, Message: "wk"},
	}
	if len(sink.deliveries) != len(want) {
		t.Fatalf("deliveries = %d, want %d", len(sink.deliveries), len(want))
	}
	for i := range want {
		if sink.deliveries[i] != want[i] {
			t.Errorf("delivery %d = %+v, want %+v", i, sink.deliveries[i], want[i])
		}
	}
}

func TestEnvironment_BridgeDeliveryErrorIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	env := NewEnvironment(context.Background(), "p", "t", Hello{URL: "u", ReactNativeBridge: true}, sink, nil, logger.NewWithWriter("error", io.Discard))

	env.ReactNativeBridge().PostMessage("m")

	if len(sink.deliveries) != 1 {
		t.Errorf("deliveries = %d, want 1", len(sink.deliveries))
	}
}

func TestEnvironment_ConsoleForwards(t *testing.T) {
	var lines []string
	env := NewEnvironment(context.Background(), "p", "t", Hello{URL: "u"}, &recordingSink{}, func(ctx context.Context, message string) {
		lines = append(lines, message)
	}, logger.NewWithWriter("error", io.Discard))

	env.Console().Log("hello")
	env.Console().Log("world")

	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Errorf("console lines = %v", lines)
	}
}
