package authz

import (
	"fmt"
	"time"
)

// Role is a named, leveled bundle of privilege. Lower level means more
// privileged; level 0 is reserved for the super admin role.
type Role struct {
	ID           int64
	Name         string
	Level        int
	Description  string
	IsSuperAdmin bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Module is a functional business area permissions are scoped to. The
// key is immutable once a permission entry references it.
type Module struct {
	ID               int64
	Key              string
	DisplayName      string
	RequiresApproval bool
	CreatedAt        time.Time
}

// Capabilities is the six-capability boolean tuple of a permission entry.
type Capabilities struct {
	CanRead    bool
	CanCreate  bool
	CanUpdate  bool
	CanDelete  bool
	CanExport  bool
	CanApprove bool
}

// NoCapabilities is the explicit all-false default. A missing entry
// resolves identically, but the two states stay distinguishable.
var NoCapabilities = Capabilities{}

// PermissionEntry grants capabilities to one (role, module) pair.
type PermissionEntry struct {
	RoleID    int64
	ModuleID  int64
	Capabilities
	UpdatedAt time.Time
}

// UserRoleBinding is the single active role assignment for one user.
type UserRoleBinding struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Action enumerates the capabilities a caller can request.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExport  Action = "export"
	ActionApprove Action = "approve"
)

// ParseAction validates a wire-level action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport, ActionApprove:
		return Action(s), nil
	}
	return "", fmt.Errorf("authz: unknown action %q", s)
}

// Allows reports whether the capability for action is granted.
func (c Capabilities) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return c.CanRead
	case ActionCreate:
		return c.CanCreate
	case ActionUpdate:
		return c.CanUpdate
	case ActionDelete:
		return c.CanDelete
	case ActionExport:
		return c.CanExport
	case ActionApprove:
		return c.CanApprove
	}
	return false
}

// ReasonCode classifies why a decision denied. Empty on allow.
type ReasonCode string

const (
	ReasonNoRole            ReasonCode = "NO_ROLE"
	ReasonRoleInactive      ReasonCode = "ROLE_INACTIVE"
	ReasonModuleUnknown     ReasonCode = "MODULE_UNKNOWN"
	ReasonNoPermissionEntry ReasonCode = "NO_PERMISSION_ENTRY"
	ReasonActionDenied      ReasonCode = "ACTION_DENIED"
)

// Decision is the outcome of a resolve call. Denial is data, never an
// error: errors are reserved for the backing store failing.
type Decision struct {
	Allow  bool       `json:"allow"`
	Reason ReasonCode `json:"reason,omitempty"`
}

// Allowed returns the allow decision.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Denied returns a deny decision carrying the reason.
func Denied(reason ReasonCode) Decision {
	return Decision{Allow: false, Reason: reason}
}
