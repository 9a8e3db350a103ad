package service

import (
	"strings"

	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
)

// Caller is the verified identity behind a request. A zero Caller is anonymous.
type Caller struct {
	ID        uint
	Role      string
	IPAddress string
	UserAgent string
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return strings.EqualFold(c.Role, models.RoleAdmin)
}

// IsFaculty reports whether the caller holds the faculty role.
func (c Caller) IsFaculty() bool {
	return strings.EqualFold(c.Role, models.RoleFaculty)
}

// entry starts an audit entry attributed to the caller.
func (c Caller) entry(action, entityType string, entityID *uint, description string) AuditEntry {
	return AuditEntry{
		ActorID:     c.ID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		IPAddress:   c.IPAddress,
		UserAgent:   c.UserAgent,
	}
}

// authorize runs the policy and turns Deny into ErrForbidden.
func authorize(policy authz.Authorizer, caller Caller, ownerID uint, resource authz.Resource, action authz.Action) error {
	decision := policy.Decide(caller.Role, caller.ID, ownerID, resource, action)
	observability.AuthzDecisions().WithLabelValues(string(resource), string(action), decision.String()).Inc()
	if !decision.Allowed() {
		return forbiddenError("You do not have permission to %s this %s", strings.ReplaceAll(string(action), "_", " "), resource)
	}
	return nil
}

func uintPtr(v uint) *uint {
	return &v
}
