package service

import (
	"strings"

	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// PlatformProbe is the read-only view of the hosting environment used for detection.
type PlatformProbe interface {
	HasReactNativeBridge() bool
	HasWebKitBridge() bool
	UserAgent() string
}

// ResolvePlatform classifies the host environment. First match wins:
// React Native bridge, Android user agent, WebKit bridge on iPhone, default.
func ResolvePlatform(probe PlatformProbe) valueobject.DeliveryTarget {
	if probe.HasReactNativeBridge() {
		return valueobject.ReactNative
	}

	userAgent := probe.UserAgent()
	if strings.Contains(userAgent, "Android") {
		return valueobject.Android
	}

	if probe.HasWebKitBridge() && strings.Contains(userAgent, "iPhone") {
		return valueobject.IOS
	}

	return valueobject.Default
}
