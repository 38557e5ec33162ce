package devices

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-device-link/internal/errors"
)

// DeviceType names a display model the companion app can report
type DeviceType string

const (
	DeviceTypeBlackAndWhite880x528 DeviceType = "BLACK_AND_WHITE_SCREEN_880X528"
	DeviceTypeBlackAndWhite800x480 DeviceType = "BLACK_AND_WHITE_SCREEN_800X480"
)

// Dimensions is a width and height in pixels
type Dimensions struct {
	Width  int
	Height int
}

var landscapeDimensions = map[DeviceType]Dimensions{
	DeviceTypeBlackAndWhite880x528: {Width: 880, Height: 528},
	DeviceTypeBlackAndWhite800x480: {Width: 800, Height: 480},
}

// ParseDeviceType validates a device type string from a request
func ParseDeviceType(s string) (DeviceType, error) {
	deviceType := DeviceType(s)
	if _, ok := landscapeDimensions[deviceType]; !ok {
		return "", errors.Wrapf(errors.ErrInvalidDeviceType, "%q", s)
	}
	return deviceType, nil
}

// Dimensions returns the screen size, swapped to portrait when vertical
func (d DeviceType) Dimensions(vertical bool) (Dimensions, error) {
	dims, ok := landscapeDimensions[d]
	if !ok {
		return Dimensions{}, errors.Wrapf(errors.ErrInvalidDeviceType, "%q", string(d))
	}
	if vertical {
		return Dimensions{Width: dims.Height, Height: dims.Width}, nil
	}
	return dims, nil
}

// Device is a display claimed by exactly one user. The DeviceID to OwnerID
// binding never changes once stored.
type Device struct {
	DeviceID             string
	OwnerID              string
	DeviceType           DeviceType
	IsVerticallyOriented bool
	CreatedAt            time.Time
}

// Dimensions resolves deviceType for this device's orientation
func (d *Device) Dimensions(deviceType DeviceType) (Dimensions, error) {
	return deviceType.Dimensions(d.IsVerticallyOriented)
}

// Repo stores devices keyed by DeviceID
type Repo interface {
	// Get returns errors.ErrDeviceNotFound when the device does not exist
	Get(ctx context.Context, deviceID string) (*Device, error)

	// CreateIfAbsent stores device unless DeviceID is taken and returns the
	// stored record, which belongs to another owner if someone won the race.
	CreateIfAbsent(ctx context.Context, device *Device) (*Device, error)

	// SetOrientation updates the orientation flag
	SetOrientation(ctx context.Context, deviceID string, vertical bool) error
}

// NormaliseID lower-cases UUID device ids so app and browser supplied ids
// compare equal; anything that is not a UUID is returned trimmed.
func NormaliseID(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}
