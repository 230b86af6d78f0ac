package users

// Known role identifiers, from most to least privileged.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

var knownRoles = []string{
	RoleAdministrator,
	RoleEditor,
	RoleAuthor,
	RoleContributor,
	RoleSubscriber,
}

// KnownRoles returns a copy of the role catalogue.
func KnownRoles() []string {
	out := make([]string, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// IsKnownRole reports whether role is part of the catalogue.
func IsKnownRole(role string) bool {
	for _, r := range knownRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanManageAnalytics reports whether any of the roles grants access to reports and settings.
func CanManageAnalytics(roles []string) bool {
	for _, r := range roles {
		if r == RoleAdministrator {
			return true
		}
	}
	return false
}
