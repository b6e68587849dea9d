package settings

import (
	"context"
	"errors"
)

// ErrSettingNotFound is returned when no row exists for a key.
var ErrSettingNotFound = errors.New("setting not found")

// Repository provides operations on the system_settings table.
type Repository interface {
	List(ctx context.Context) ([]Setting, error)
	Get(ctx context.Context, key string) (*Setting, error)
	Upsert(ctx context.Context, key, value, description string) (*Setting, error)
}
