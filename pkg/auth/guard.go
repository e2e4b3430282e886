package auth

import (
	"strings"

	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/catalog"
	"github.com/Sternrassler/storefront-client/pkg/client"
)

// Decision is the outcome of a route guard check. The guard never
// navigates; callers act on the decision.
type Decision string

const (
	// DecisionLoading means identity is not known yet; render a placeholder.
	DecisionLoading Decision = "loading"

	// DecisionRedirectLogin means the user must log in first.
	DecisionRedirectLogin Decision = "redirect_login"

	// DecisionForbidden means the user is logged in without a required role.
	DecisionForbidden Decision = "forbidden"

	// DecisionAllow means the route may render.
	DecisionAllow Decision = "allow"
)

// Guard decides whether a route may render for the identity snapshot.
// When roles are given the profile must hold one of them.
func Guard(snap cache.Snapshot[catalog.Profile], requireAuth bool, roles ...string) Decision {
	if !requireAuth {
		return DecisionAllow
	}

	switch snap.State {
	case cache.StateEmpty, cache.StateLoading:
		return DecisionLoading
	}

	if snap.Value == nil {
		return DecisionRedirectLogin
	}
	if len(roles) > 0 && !snap.Value.HasRole(roles...) {
		return DecisionForbidden
	}
	return DecisionAllow
}

// LoginURL returns the interactive login address for an API base URL.
func LoginURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + client.LoginPath
}
