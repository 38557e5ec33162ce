// Package pgrepo stores devices in PostgreSQL
package pgrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/errors"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ devices.Repo = (*Repo)(nil)

type Repo struct {
	db DBTX
}

func New(db DBTX) *Repo {
	return &Repo{db: db}
}

const selectDevice = `
	SELECT device_id, owner_id, device_type, is_vertically_oriented, created_at
	FROM devices
	WHERE device_id = $1`

func (r *Repo) Get(ctx context.Context, deviceID string) (*devices.Device, error) {
	device, err := scanDevice(r.db.QueryRow(ctx, selectDevice, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[pgrepo Get] %w", err)
	}
	return device, nil
}

// CreateIfAbsent inserts with ON CONFLICT DO NOTHING and reads back the row,
// so concurrent first contacts converge on whichever insert landed first.
func (r *Repo) CreateIfAbsent(ctx context.Context, device *devices.Device) (*devices.Device, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO devices (device_id, owner_id, device_type, is_vertically_oriented, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id) DO NOTHING`,
		device.DeviceID, device.OwnerID, string(device.DeviceType), device.IsVerticallyOriented, device.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("[pgrepo CreateIfAbsent] %w", err)
	}
	return r.Get(ctx, device.DeviceID)
}

func (r *Repo) SetOrientation(ctx context.Context, deviceID string, vertical bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE devices SET is_vertically_oriented = $2 WHERE device_id = $1`, deviceID, vertical)
	if err != nil {
		return fmt.Errorf("[pgrepo SetOrientation] %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (*devices.Device, error) {
	var d devices.Device
	var deviceType string
	if err := row.Scan(&d.DeviceID, &d.OwnerID, &deviceType, &d.IsVerticallyOriented, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.DeviceType = devices.DeviceType(deviceType)
	return &d, nil
}
