package transport

import (
	"errors"
	"fmt"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// ErrTransportUnavailable means the bridge a target expects is missing at send time.
var ErrTransportUnavailable = errors.New("transport unavailable")

// FallbackFunc is told whenever a message is rerouted to the console.
type FallbackFunc func(target valueobject.DeliveryTarget, err error)

// New returns the transport for a delivery target.
// Android and the default target both use the diagnostic console.
func New(target valueobject.DeliveryTarget, env port.Environment, onFallback FallbackFunc) port.Transport {
	switch target {
	case valueobject.ReactNative:
		return &bridgeTransport{
			target:     target,
			bridge:     env.ReactNativeBridge,
			console:    env.Console(),
			onFallback: onFallback,
		}
	case valueobject.IOS:
		return &bridgeTransport{
			target:     target,
			bridge:     env.WebKitBridge,
			console:    env.Console(),
			onFallback: onFallback,
		}
	case valueobject.Android, valueobject.Default:
		return &consoleTransport{console: env.Console()}
	default:
		return &consoleTransport{console: env.Console()}
	}
}

// consoleTransport writes messages to the diagnostic log.
type consoleTransport struct {
	console port.Console
}

func (t *consoleTransport) Send(message string) {
	t.console.Log(message)
}

// bridgeTransport posts to a host bridge looked up on every send.
type bridgeTransport struct {
	target     valueobject.DeliveryTarget
	bridge     func() port.Bridge
	console    port.Console
	onFallback FallbackFunc
}

func (t *bridgeTransport) Send(message string) {
	if b := t.bridge(); b != nil {
		b.PostMessage(message)
		return
	}

	if t.onFallback != nil {
		t.onFallback(t.target, fmt.Errorf("%w: %s bridge is absent", ErrTransportUnavailable, t.target))
	}
	t.console.Log(message)
}
