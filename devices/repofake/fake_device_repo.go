package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/errors"
)

var _ devices.Repo = (*FakeDeviceRepo)(nil)

// FakeDeviceRepo is an in-memory devices.Repo
type FakeDeviceRepo struct {
	devices map[string]devices.Device
	lock    sync.RWMutex
}

func NewFakeDeviceRepo() *FakeDeviceRepo {
	return &FakeDeviceRepo{
		devices: make(map[string]devices.Device),
	}
}

func (dr *FakeDeviceRepo) Get(_ context.Context, deviceID string) (*devices.Device, error) {
	dr.lock.RLock()
	defer dr.lock.RUnlock()

	d, ok := dr.devices[deviceID]
	if !ok {
		return nil, errors.ErrDeviceNotFound
	}
	return &d, nil
}

func (dr *FakeDeviceRepo) CreateIfAbsent(_ context.Context, device *devices.Device) (*devices.Device, error) {
	if device == nil || device.DeviceID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "device id is required")
	}

	dr.lock.Lock()
	defer dr.lock.Unlock()

	if existing, ok := dr.devices[device.DeviceID]; ok {
		return &existing, nil
	}
	dr.devices[device.DeviceID] = *device
	stored := *device
	return &stored, nil
}

func (dr *FakeDeviceRepo) SetOrientation(_ context.Context, deviceID string, vertical bool) error {
	dr.lock.Lock()
	defer dr.lock.Unlock()

	d, ok := dr.devices[deviceID]
	if !ok {
		return errors.ErrDeviceNotFound
	}
	d.IsVerticallyOriented = vertical
	dr.devices[deviceID] = d
	return nil
}

// Len returns the number of stored devices
func (dr *FakeDeviceRepo) Len() int {
	dr.lock.RLock()
	defer dr.lock.RUnlock()
	return len(dr.devices)
}
