// Package authz decides whether a caller may perform an action on a resource.
//
// Decisions are a pure function of (role, caller id, owner id, resource, action).
// The rule table is loaded once into an in-memory casbin enforcer and never
// mutated afterwards.
package authz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Resource names an entity family guarded by the policy.
type Resource string

// Resources known to the policy.
const (
	ResourceUser         Resource = "user"
	ResourceCourse       Resource = "course"
	ResourceEnrollment   Resource = "enrollment"
	ResourceAnnouncement Resource = "announcement"
	ResourceEvent        Resource = "event"
	ResourceNotes        Resource = "notes"
	ResourceActivity     Resource = "activity"
	ResourceSession      Resource = "session"
)

// Action names an operation on a resource.
type Action string

// Actions known to the policy.
const (
	ActionCreate         Action = "create"
	ActionRead           Action = "read"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionList           Action = "list"
	ActionDownload       Action = "download"
	ActionManage         Action = "manage"
	ActionChangePassword Action = "change_password"
	ActionStats          Action = "stats"
	ActionPurge          Action = "purge"
	ActionLogin          Action = "login"
	ActionRegister       Action = "register"
)

// Decision is the outcome of a policy check.
type Decision int

const (
	// Deny is the zero value so an unset decision never grants access.
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d == Allow
}

// Authorizer is implemented by Policy and consumed by the resource services.
type Authorizer interface {
	Decide(role string, callerID, ownerID uint, resource Resource, action Action) Decision
}

const anonymousRole = "anonymous"

const policyModel = `
[request_definition]
r = sub, obj, act, caller, owner

[policy_definition]
p = sub, obj, act, scope

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act) && (p.scope == "any" || (p.scope == "own" && r.caller == r.owner && r.caller != "0"))
`

var knownRoles = map[string]struct{}{
	"admin":       {},
	"faculty":     {},
	"student":     {},
	anonymousRole: {},
}

// rules are (subject, resource, action, scope) tuples.
var rules = [][]string{
	{"admin", "*", "*", "any"},

	{"*", "session", "login", "any"},
	{"*", "session", "register", "any"},

	{"faculty", "course", "create", "any"},
	{"faculty", "course", "read", "any"},
	{"faculty", "course", "update", "own"},
	{"faculty", "course", "delete", "own"},
	{"faculty", "announcement", "create", "any"},
	{"faculty", "announcement", "read", "any"},
	{"faculty", "announcement", "update", "own"},
	{"faculty", "announcement", "delete", "own"},
	{"faculty", "event", "create", "any"},
	{"faculty", "event", "read", "any"},
	{"faculty", "event", "update", "own"},
	{"faculty", "event", "delete", "own"},
	{"faculty", "notes", "create", "any"},
	{"faculty", "notes", "read", "any"},
	{"faculty", "notes", "update", "own"},
	{"faculty", "notes", "delete", "own"},
	{"faculty", "notes", "download", "any"},
	{"faculty", "enrollment", "read", "any"},

	{"student", "course", "read", "any"},
	{"student", "announcement", "read", "any"},
	{"student", "event", "read", "any"},
	{"student", "notes", "read", "any"},
	{"student", "notes", "download", "any"},
	{"student", "enrollment", "read", "own"},
}

// selfRules are granted to every authenticated role on its own records.
var selfRules = [][]string{
	{"user", "read", "own"},
	{"user", "change_password", "own"},
	{"activity", "read", "own"},
}

// Policy is the casbin-backed Authorizer.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy builds the enforcer from the embedded model and rule table.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	enforcer.EnableAutoSave(false)

	for _, rule := range rules {
		if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2], rule[3]); err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", rule, err)
		}
	}
	for _, role := range []string{"faculty", "student"} {
		for _, rule := range selfRules {
			if _, err := enforcer.AddPolicy(role, rule[0], rule[1], rule[2]); err != nil {
				return nil, fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		}
	}

	return &Policy{enforcer: enforcer}, nil
}

// MustNewPolicy is NewPolicy for wiring code where the embedded table cannot fail.
func MustNewPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// Decide returns Allow when role may perform action on resource. ownerID is
// the owner of the target record, or zero when the record has no owner.
func (p *Policy) Decide(role string, callerID, ownerID uint, resource Resource, action Action) Decision {
	subject := strings.ToLower(strings.TrimSpace(role))
	if subject == "" {
		subject = anonymousRole
		callerID = 0
	}
	if _, ok := knownRoles[subject]; !ok {
		return Deny
	}

	allowed, err := p.enforcer.Enforce(
		subject,
		string(resource),
		string(action),
		strconv.FormatUint(uint64(callerID), 10),
		strconv.FormatUint(uint64(ownerID), 10),
	)
	if err != nil || !allowed {
		return Deny
	}
	return Allow
}
