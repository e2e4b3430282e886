package catalog

import "strings"

// Profile is the authenticated user as returned by GET /profile.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

// HasRole reports whether the profile role matches any of roles,
// ignoring case.
func (p Profile) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(p.Role, r) {
			return true
		}
	}
	return false
}
