package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubarr/kubarr/internal/api/validation"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func knownApps(names ...string) func(string) bool {
	return func(app string) bool {
		for _, n := range names {
			if n == app {
				return true
			}
		}
		return false
	}
}

func TestValidateRoleRequest(t *testing.T) {
	known := knownApps("sonarr", "radarr")

	tests := []struct {
		name        string
		req         validation.RoleRequest
		requireName bool
		wantFields  []string
	}{
		{name: "valid create", req: validation.RoleRequest{Name: strPtr("editors"), Apps: []string{"sonarr"}}, requireName: true},
		{name: "missing name on create", req: validation.RoleRequest{}, requireName: true, wantFields: []string{"name"}},
		{name: "missing name on update", req: validation.RoleRequest{Description: strPtr("x")}},
		{name: "uppercase name", req: validation.RoleRequest{Name: strPtr("Editors")}, wantFields: []string{"name"}},
		{name: "long description", req: validation.RoleRequest{Description: strPtr(strings.Repeat("d", 501))}, wantFields: []string{"description"}},
		{name: "unknown apps", req: validation.RoleRequest{Apps: []string{"sonarr", "plex", "emby"}}, wantFields: []string{"app_names", "app_names"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validation.ValidateRoleRequest(tt.req, tt.requireName, known)
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			if len(tt.wantFields) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateCreateUserRequest(t *testing.T) {
	assert.Empty(t, validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	}))

	errs := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Username: "alice", Email: "not-an-email", Password: "correct-horse",
	})
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Field)

	errs = validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Username: "alice", Email: "alice@example.com", Password: "short",
	})
	require.Len(t, errs, 1)
	assert.Equal(t, "password", errs[0].Field)
}

func TestParseRoleIDs(t *testing.T) {
	ids, errs := validation.ParseRoleIDs([]string{"8b0a3f52-5c8e-4a43-9a6e-111111111111", "nope"})

	assert.Len(t, ids, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, "role_ids", errs[0].Field)
}

func TestValidateInviteExpiry(t *testing.T) {
	assert.Empty(t, validation.ValidateInviteExpiry(nil))
	assert.Empty(t, validation.ValidateInviteExpiry(intPtr(7)))
	assert.Len(t, validation.ValidateInviteExpiry(intPtr(0)), 1)
	assert.Len(t, validation.ValidateInviteExpiry(intPtr(366)), 1)
}

func TestValidateSettingValue(t *testing.T) {
	for _, v := range []string{"true", "FALSE", " yes ", "0"} {
		assert.Empty(t, validation.ValidateSettingValue(v), v)
	}
	assert.Len(t, validation.ValidateSettingValue("maybe"), 1)
}
