package enrichment

import (
	"fmt"
	"strings"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	permEnrich       = "context:enrich"
	permSourcePrefix = "context:source:"
)

// matchPermission reports whether a granted pattern covers a required
// permission. Supports "*" and trailing '*' (e.g. "context:*").
func matchPermission(pattern, required string) bool {
	if pattern == "*" || pattern == required {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(required, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// grants is the set of permission patterns a caller holds through its roles.
type grants []string

func grantsFor(user model.User, rolePermissions map[string][]string) grants {
	var g grants
	for _, role := range user.Roles {
		g = append(g, rolePermissions[role]...)
	}
	return g
}

func (g grants) has(required string) bool {
	for _, pattern := range g {
		if matchPermission(pattern, required) {
			return true
		}
	}
	return false
}

func (g grants) hasAll(required []string) bool {
	for _, p := range required {
		if !g.has(p) {
			return false
		}
	}
	return true
}

func (g grants) missing(required []string) string {
	for _, p := range required {
		if !g.has(p) {
			return p
		}
	}
	return ""
}

func sourcePermission(t model.SourceType) string {
	return fmt.Sprintf("%s%s", permSourcePrefix, t)
}
