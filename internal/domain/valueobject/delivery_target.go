package valueobject

import "errors"

// DeliveryTarget is the host environment a page hands its messages to.
type DeliveryTarget string

const (
	ReactNative DeliveryTarget = "REACT_NATIVE"
	Android     DeliveryTarget = "ANDROID"
	IOS         DeliveryTarget = "IOS"
	Default     DeliveryTarget = "DEFAULT"
)

var ErrInvalidDeliveryTarget = errors.New("invalid delivery target")

func (t DeliveryTarget) Validate() error {
	switch t {
	case ReactNative, Android, IOS, Default:
		return nil
	default:
		return ErrInvalidDeliveryTarget
	}
}

func (t DeliveryTarget) String() string {
	return string(t)
}
