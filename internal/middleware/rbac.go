package middleware

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
	"github.com/noah-isme/campus-api/internal/utils"
)

var campusRoles = map[string]struct{}{
	models.RoleStudent: {},
	models.RoleFaculty: {},
	models.RoleAdmin:   {},
}

// RequireRole gates a whole route group on the caller's role. Per-record
// decisions stay in the services. It panics on a role the API does not know.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if _, ok := campusRoles[normalized]; !ok {
			panic(fmt.Sprintf("middleware: unknown role %q", role))
		}
		allowed[normalized] = struct{}{}
	}
	names := make([]string, 0, len(allowed))
	for role := range allowed {
		names = append(names, role)
	}
	sort.Strings(names)
	label := strings.Join(names, "|")

	return func(c *fiber.Ctx) error {
		if c.Locals(LocalUserID) == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		role := normalizeRoleValue(c.Locals(LocalUserRole))
		if _, ok := allowed[role]; !ok {
			observability.AuthzDecisions().WithLabelValues("route", label, "deny").Inc()
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	role, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(role))
}
