package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Built-in role names. They are seeded at startup and flagged is_system.
const (
	RoleAdmin      = "admin"
	RoleViewer     = "viewer"
	RoleDownloader = "downloader"
)

// Role represents a row in the roles table with its app permissions.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsSystem    bool
	Apps        []string
	CreatedAt   time.Time
}

// Grant is one row of the user_roles ⋈ roles ⟕ role_app_permissions join.
// AppName is empty for a role without permissions.
type Grant struct {
	RoleName string
	AppName  string
}

// UpdateFields holds the optional fields for a role update.
type UpdateFields struct {
	Name        *string
	Description *string
}

// SystemRole describes a built-in role and the apps it is seeded with.
type SystemRole struct {
	Name        string
	Description string
	Apps        []string
}

// SystemRoles are created on startup if missing. Existing permissions are
// never overwritten.
var SystemRoles = []SystemRole{
	{Name: RoleAdmin, Description: "Full access to every app and to administration"},
	{Name: RoleViewer, Description: "Watch and request media", Apps: []string{"jellyfin", "jellyseerr"}},
	{Name: RoleDownloader, Description: "Manage downloads and libraries", Apps: []string{"qbittorrent", "sabnzbd", "radarr", "sonarr"}},
}
