package port

// Bridge is a host-provided message handler object, e.g. a React Native
// WebView bridge or a WebKit script message handler.
type Bridge interface {
	PostMessage(message string)
}

// Console is the page's diagnostic log.
type Console interface {
	Log(message string)
}

// Environment is the page as seen by the instrumentation runtime.
// Bridge getters return nil when the bridge object is absent; presence
// is checked again at every send, so a bridge may disappear at runtime.
type Environment interface {
	// TimeOrigin is the navigation origin in epoch milliseconds.
	TimeOrigin() float64
	URL() string
	UserAgent() string

	HasReactNativeBridge() bool
	ReactNativeBridge() Bridge

	HasWebKitBridge() bool
	WebKitBridge() Bridge

	Console() Console
}
