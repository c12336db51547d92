package authz

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// ErrNoFallbackRole indicates no active role exists to absorb an
// unmatched legacy label. That is a configuration error: the role
// catalog must always hold at least one active role.
var ErrNoFallbackRole = errors.New("authz: no active role available for fallback")

// MatchKind records how a legacy label was resolved to a role.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchFuzzy    MatchKind = "fuzzy"
	MatchFallback MatchKind = "fallback"
)

// DefaultLegacyLabels maps historical free-text role labels to
// canonical role names. Labels outside this table fall through to
// fuzzy matching and, last, to the least privileged active role.
var DefaultLegacyLabels = map[string]string{
	"Admin":         "Administrator",
	"Administrator": "Administrator",
	"Accountant":    "Accountant",
	"Accounting":    "Accountant",
	"Manager":       "Manager",
	"Operator":      "Operator",
	"Consultant":    "Viewer",
	"Viewer":        "Viewer",
}

// Bindings manages the user -> role assignment and the one-time
// migration path from legacy free-text labels.
type Bindings struct {
	roles    RoleStore
	bindings BindingStore
	audit    shared.AuditRecorder
	labels   map[string]string
	fold     cases.Caser
}

// NewBindings constructs a Bindings service. labels may be nil to use
// DefaultLegacyLabels.
func NewBindings(roles RoleStore, bindings BindingStore, audit shared.AuditRecorder, labels map[string]string) *Bindings {
	if labels == nil {
		labels = DefaultLegacyLabels
	}
	return &Bindings{
		roles:    roles,
		bindings: bindings,
		audit:    audit,
		labels:   labels,
		fold:     cases.Fold(),
	}
}

// GetBinding returns the binding for userID, or ErrBindingNotFound.
func (b *Bindings) GetBinding(ctx context.Context, userID int64) (UserRoleBinding, error) {
	return b.bindings.GetBinding(ctx, userID)
}

// Bind assigns roleID to userID, replacing any previous assignment.
func (b *Bindings) Bind(ctx context.Context, actorID, userID, roleID int64) (UserRoleBinding, error) {
	role, err := b.roles.GetRole(ctx, roleID)
	if err != nil {
		return UserRoleBinding{}, err
	}
	binding, err := b.bindings.UpsertBinding(ctx, userID, role.ID)
	if err != nil {
		return UserRoleBinding{}, err
	}
	if b.audit != nil {
		_ = b.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.assign",
			Entity:   "user_role_binding",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"role_id": role.ID, "role": role.Name},
		})
	}
	return binding, nil
}

// MigrateLegacyLabel resolves a historical free-text label to a
// canonical role and binds it. Idempotent: a user who already holds a
// binding keeps it, and no second audit row is written. Every fresh
// decision is audited with the label, the chosen role and how the
// match was made; fuzzy matches can over- or under-grant when labels
// are sloppy, so the trail is the safety net.
func (b *Bindings) MigrateLegacyLabel(ctx context.Context, actorID, userID int64, legacyLabel string) (int64, error) {
	if existing, err := b.bindings.GetBinding(ctx, userID); err == nil {
		return existing.RoleID, nil
	} else if !errors.Is(err, ErrBindingNotFound) {
		return 0, err
	}

	role, kind, err := b.matchLabel(ctx, strings.TrimSpace(legacyLabel))
	if err != nil {
		return 0, err
	}

	if _, err := b.bindings.UpsertBinding(ctx, userID, role.ID); err != nil {
		return 0, err
	}

	if b.audit != nil {
		err := b.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.migrate",
			Entity:   "user_role_binding",
			EntityID: strconv.FormatInt(userID, 10),
			Meta: map[string]any{
				"from_label": legacyLabel,
				"role_id":    role.ID,
				"role":       role.Name,
				"match":      string(kind),
			},
		})
		if err != nil {
			return 0, err
		}
	}
	return role.ID, nil
}

func (b *Bindings) matchLabel(ctx context.Context, label string) (Role, MatchKind, error) {
	// 1. Exact, case sensitive.
	if name, ok := b.labels[label]; ok {
		role, err := b.roles.GetRoleByName(ctx, name)
		if err == nil {
			return role, MatchExact, nil
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return Role{}, "", err
		}
	}

	roles, err := b.roles.ListRoles(ctx)
	if err != nil {
		return Role{}, "", err
	}

	// 2. Case-insensitive substring, either direction, against the
	// canonical labels. Candidates are ordered by role level ascending
	// (most privileged first) with role ID as the deterministic
	// tie-break, so an ambiguous label always resolves the same way.
	if label != "" {
		folded := b.fold.String(label)
		candidates := make(map[int64]Role)
		for legacy, name := range b.labels {
			foldedLegacy := b.fold.String(legacy)
			if !strings.Contains(folded, foldedLegacy) && !strings.Contains(foldedLegacy, folded) {
				continue
			}
			for _, role := range roles {
				if role.Name == name && role.Active {
					candidates[role.ID] = role
				}
			}
		}
		if len(candidates) > 0 {
			ordered := make([]Role, 0, len(candidates))
			for _, role := range candidates {
				ordered = append(ordered, role)
			}
			sort.Slice(ordered, func(i, j int) bool {
				if ordered[i].Level != ordered[j].Level {
					return ordered[i].Level < ordered[j].Level
				}
				return ordered[i].ID < ordered[j].ID
			})
			return ordered[0], MatchFuzzy, nil
		}
	}

	// 3. Fallback: the least privileged active role.
	var fallback *Role
	for i := range roles {
		role := roles[i]
		if !role.Active {
			continue
		}
		if fallback == nil || role.Level > fallback.Level ||
			(role.Level == fallback.Level && role.ID < fallback.ID) {
			fallback = &role
		}
	}
	if fallback == nil {
		return Role{}, "", ErrNoFallbackRole
	}
	return *fallback, MatchFallback, nil
}
