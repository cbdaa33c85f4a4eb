package remotepage

import (
	"context"
	"errors"
	"strings"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// ErrInvalidHello means the first frame did not describe the page.
var ErrInvalidHello = errors.New("invalid hello frame")

// Hello describes a page as announced by its agent.
type Hello struct {
	URL               string  `json:"url"`
	UserAgent         string  `json:"user_agent"`
	TimeOrigin        float64 `json:"time_origin"`
	ReactNativeBridge bool    `json:"react_native_bridge"`
	WebKitBridge      bool    `json:"webkit_bridge"`
}

// Validate checks the fields the pipeline cannot work without.
func (h Hello) Validate() error {
	if strings.TrimSpace(h.URL) == "" {
		return errors.New("url is required")
	}
	if h.TimeOrigin < 0 {
		return errors.New("time_origin must not be negative")
	}
	return nil
}

// ConsoleFunc receives every line the page writes to its diagnostic console.
type ConsoleFunc func(ctx context.Context, message string)

// Environment is a page running elsewhere, seen through its agent connection.
// Bridge messages are delivered straight to the sink with the bridge's target.
type Environment struct {
	ctx     context.Context
	pageID  string
	tag     string
	hello   Hello
	sink    port.EnvelopeSink
	console ConsoleFunc
	logger  *logger.Logger

	reactNative port.Bridge
	webKit      port.Bridge
}

var _ port.Environment = (*Environment)(nil)

// NewEnvironment builds the environment for one agent connection; ctx bounds every delivery.
func NewEnvironment(
	ctx context.Context,
	pageID, tag string,
	hello Hello,
	sink port.EnvelopeSink,
	console ConsoleFunc,
	logger *logger.Logger,
) *Environment {
	env := &Environment{
		ctx:     ctx,
		pageID:  pageID,
		tag:     tag,
		hello:   hello,
		sink:    sink,
		console: console,
		logger:  logger,
	}
	if hello.ReactNativeBridge {
		env.reactNative = &bridge{env: env, target: valueobject.ReactNative}
	}
	if hello.WebKitBridge {
		env.webKit = &bridge{env: env, target: valueobject.IOS}
	}
	return env
}

func (e *Environment) TimeOrigin() float64        { return e.hello.TimeOrigin }
func (e *Environment) URL() string                { return e.hello.URL }
func (e *Environment) UserAgent() string          { return e.hello.UserAgent }
func (e *Environment) HasReactNativeBridge() bool { return e.reactNative != nil }
func (e *Environment) HasWebKitBridge() bool      { return e.webKit != nil }

// ReactNativeBridge returns nil when the page has no React Native bridge.
func (e *Environment) ReactNativeBridge() port.Bridge {
	if e.reactNative == nil {
		return nil
	}
	return e.reactNative
}

// WebKitBridge returns nil when the page has no WebKit message handler.
func (e *Environment) WebKitBridge() port.Bridge {
	if e.webKit == nil {
		return nil
	}
	return e.webKit
}

func (e *Environment) Console() port.Console {
	return consoleFunc(func(message string) {
		if e.console != nil {
			e.console(e.ctx, message)
		}
	})
}

type consoleFunc func(message string)

func (f consoleFunc) Log(message string) { f(message) }

// bridge hands messages to the sink tagged with the bridge's own target.
type bridge struct {
	env    *Environment
	target valueobject.DeliveryTarget
}

func (b *bridge) PostMessage(message string) {
	err := b.env.sink.Deliver(b.env.ctx, port.Delivery{
		PageID:  b.env.pageID,
		Tag:     b.env.tag,
		Target:  b.target,
		Message: message,
	})
	if err != nil {
		b.env.logger.Warn("Bridge message was not delivered",
			"page_id", b.env.pageID,
			"target", b.target.String(),
			"error", err.Error(),
		)
	}
}
