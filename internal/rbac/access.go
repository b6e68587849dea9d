package rbac

import (
	"slices"
	"sort"
)

// Access is the resolved set of apps a principal may reach.
type Access struct {
	all  bool
	apps map[string]struct{}
}

// ResolveAccess computes access from the legacy admin flag and the
// principal's grants. Holding the admin role, or the flag, grants every app.
// Otherwise access is the union of the granted app names.
func ResolveAccess(isAdminFlag bool, grants []Grant) Access {
	if isAdminFlag {
		return Access{all: true}
	}

	apps := make(map[string]struct{})
	for _, g := range grants {
		if g.RoleName == RoleAdmin {
			return Access{all: true}
		}
		if g.AppName != "" {
			apps[g.AppName] = struct{}{}
		}
	}
	return Access{apps: apps}
}

// All reports whether access is unrestricted.
func (a Access) All() bool {
	return a.all
}

// CanAccess reports whether app is reachable.
func (a Access) CanAccess(app string) bool {
	if a.all {
		return true
	}
	_, ok := a.apps[app]
	return ok
}

// Apps returns the sorted granted app names. It is nil for unrestricted access.
func (a Access) Apps() []string {
	if a.all {
		return nil
	}
	names := make([]string, 0, len(a.apps))
	for name := range a.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter returns the elements of items whose name is reachable, preserving order.
func Filter[T any](a Access, items []T, name func(T) string) []T {
	if a.all {
		return slices.Clone(items)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if a.CanAccess(name(item)) {
			out = append(out, item)
		}
	}
	return out
}
