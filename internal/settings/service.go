package settings

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownSetting is returned when writing a key that has no definition.
var ErrUnknownSetting = errors.New("unknown setting key")

// Resolver yields the effective registration policy.
type Resolver interface {
	Registration(ctx context.Context) (RegistrationSettings, error)
}

// Service reads and writes system settings, falling back to static defaults.
type Service struct {
	repo     Repository
	defaults Defaults
}

// NewService creates a new settings Service.
func NewService(repo Repository, defaults Defaults) *Service {
	return &Service{repo: repo, defaults: defaults}
}

// List returns every known setting, stored value first, default otherwise.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]Setting, len(stored))
	for _, st := range stored {
		byKey[st.Key] = st
	}

	result := make([]Setting, 0, len(definitions))
	for _, d := range definitions {
		if st, ok := byKey[d.key]; ok {
			if st.Description == "" {
				st.Description = d.description
			}
			result = append(result, st)
			continue
		}
		result = append(result, s.fallback(d))
	}
	return result, nil
}

// Get returns the setting for key. Unknown keys without a row yield ErrSettingNotFound.
func (s *Service) Get(ctx context.Context, key string) (*Setting, error) {
	st, err := s.repo.Get(ctx, key)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrSettingNotFound) {
		return nil, err
	}
	d, ok := lookup(key)
	if !ok {
		return nil, ErrSettingNotFound
	}
	fb := s.fallback(d)
	return &fb, nil
}

// Set stores value for a known key.
func (s *Service) Set(ctx context.Context, key, value string) (*Setting, error) {
	d, ok := lookup(key)
	if !ok {
		return nil, ErrUnknownSetting
	}
	return s.repo.Upsert(ctx, key, value, d.description)
}

// Registration resolves the registration policy.
func (s *Service) Registration(ctx context.Context) (RegistrationSettings, error) {
	enabled, err := s.Get(ctx, KeyRegistrationEnabled)
	if err != nil {
		return RegistrationSettings{}, fmt.Errorf("reading %s: %w", KeyRegistrationEnabled, err)
	}
	approval, err := s.Get(ctx, KeyRegistrationRequireApproval)
	if err != nil {
		return RegistrationSettings{}, fmt.Errorf("reading %s: %w", KeyRegistrationRequireApproval, err)
	}
	return RegistrationSettings{
		Enabled:         ParseBool(enabled.Value),
		RequireApproval: ParseBool(approval.Value),
	}, nil
}

func (s *Service) fallback(d definition) Setting {
	return Setting{
		Key:         d.key,
		Value:       d.value(s.defaults),
		Description: d.description,
		IsDefault:   true,
	}
}
