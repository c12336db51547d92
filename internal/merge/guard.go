// Package merge implements the field-merge guard protecting records
// from partial-update data loss. A field a caller did not submit is
// never modified, and fields carrying a corrupting value (an omitted
// amount arriving as zero, an unlinked reference arriving as null)
// keep their stored value instead of being silently overwritten.
package merge

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Record is a keyed set of named fields of a persisted entity.
type Record map[string]any

// Patch is the caller-submitted subset of fields intended to change.
type Patch map[string]any

// Reason classifies why a patch field was rejected.
type Reason string

const (
	// ReasonEmptyValue rejects null/empty on a field that is
	// non-nullable on update.
	ReasonEmptyValue Reason = "EMPTY_VALUE"
	// ReasonInvalidValue rejects a value failing the field rule. The
	// stored value is kept; the guard never coerces to a default.
	ReasonInvalidValue Reason = "INVALID_VALUE"
)

// FieldSpec declares the update rules for one field. Rule is a
// validator tag (e.g. "gt=0" for monetary amounts, "min=1" for
// reference ids); an empty rule accepts any non-rejected value.
type FieldSpec struct {
	Rule     string
	Required bool
}

// Result carries the outcome of a merge. Applied holds only the fields
// safe to persist; Rejected reports per-field failures without
// aborting the rest of the merge.
type Result struct {
	Applied  Record
	Rejected map[string]Reason
}

// Guard validates patches against field specs.
type Guard struct {
	validate *validator.Validate
}

// NewGuard constructs a Guard.
func NewGuard() *Guard {
	return &Guard{validate: validator.New()}
}

// Merge computes the minimal validated set of patch fields to apply
// over existing. Fields absent from patch are never considered. One
// rejected field never blocks the others; the caller decides whether
// partial success is acceptable for its endpoint.
func (g *Guard) Merge(existing Record, patch Patch, specs map[string]FieldSpec) Result {
	result := Result{
		Applied:  make(Record, len(patch)),
		Rejected: make(map[string]Reason),
	}

	for field, value := range patch {
		spec := specs[field]

		if isEmpty(value) {
			if spec.Required {
				result.Rejected[field] = ReasonEmptyValue
				continue
			}
			result.Applied[field] = value
			continue
		}

		if spec.Rule != "" {
			if err := g.validate.Var(value, spec.Rule); err != nil {
				result.Rejected[field] = ReasonInvalidValue
				continue
			}
		}

		result.Applied[field] = value
	}

	return result
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
