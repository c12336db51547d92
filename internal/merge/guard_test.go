package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func payableSpecs() map[string]FieldSpec {
	return map[string]FieldSpec{
		"concept":  RequiredText(),
		"amount":   Amount(),
		"clientId": RequiredReference(),
		"notes":    Text(),
	}
}

func storedPayable() Record {
	return Record{
		"concept":  "Cement delivery",
		"amount":   float64(50000),
		"clientId": float64(3),
		"notes":    "net 30",
	}
}

func TestMergeEmptyPatchTouchesNothing(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{}, payableSpecs())
	require.Empty(t, result.Applied)
	require.Empty(t, result.Rejected)
}

func TestMergeAbsentFieldsAreNeverConsidered(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{"concept": "Steel delivery"}, payableSpecs())

	require.Equal(t, Record{"concept": "Steel delivery"}, result.Applied)
	require.Empty(t, result.Rejected)
	require.NotContains(t, result.Applied, "amount")
	require.NotContains(t, result.Applied, "clientId")
}

func TestMergeRejectsZeroAmount(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{
		"concept": "Cement delivery, invoiced",
		"amount":  float64(0),
	}, payableSpecs())

	require.Equal(t, ReasonInvalidValue, result.Rejected["amount"])
	// The rejection is per-field: the concept change still lands.
	require.Equal(t, "Cement delivery, invoiced", result.Applied["concept"])
	require.NotContains(t, result.Applied, "amount")
}

func TestMergeRejectsNegativeAmount(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{"amount": float64(-100)}, payableSpecs())
	require.Equal(t, ReasonInvalidValue, result.Rejected["amount"])
	require.Empty(t, result.Applied)
}

func TestMergeRejectsNullOnRequiredField(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{
		"clientId": nil,
		"concept":  "",
	}, payableSpecs())

	require.Equal(t, ReasonEmptyValue, result.Rejected["clientId"])
	require.Equal(t, ReasonEmptyValue, result.Rejected["concept"])
	require.Empty(t, result.Applied)
}

func TestMergeAllowsClearingOptionalFields(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{"notes": ""}, payableSpecs())
	require.Empty(t, result.Rejected)
	require.Contains(t, result.Applied, "notes")
	require.Equal(t, "", result.Applied["notes"])
}

func TestMergeNullClearsOptionalReference(t *testing.T) {
	specs := map[string]FieldSpec{"projectId": Reference()}
	result := NewGuard().Merge(Record{"projectId": float64(9)}, Patch{"projectId": nil}, specs)
	require.Empty(t, result.Rejected)
	require.Contains(t, result.Applied, "projectId")
	require.Nil(t, result.Applied["projectId"])
}

func TestMergeBlankStringCountsAsEmpty(t *testing.T) {
	result := NewGuard().Merge(storedPayable(), Patch{"concept": "   "}, payableSpecs())
	require.Equal(t, ReasonEmptyValue, result.Rejected["concept"])
}

func TestMergeUnknownFieldPassesThrough(t *testing.T) {
	// Fields without a spec carry no rule; the repository column
	// whitelist is the second gate.
	result := NewGuard().Merge(storedPayable(), Patch{"color": "blue"}, payableSpecs())
	require.Empty(t, result.Rejected)
	require.Equal(t, "blue", result.Applied["color"])
}

func TestMergeDatetimeRule(t *testing.T) {
	specs := map[string]FieldSpec{"dueAt": {Rule: "datetime=2006-01-02T15:04:05Z07:00", Required: true}}

	good := NewGuard().Merge(Record{}, Patch{"dueAt": "2026-09-01T00:00:00Z"}, specs)
	require.Empty(t, good.Rejected)

	bad := NewGuard().Merge(Record{}, Patch{"dueAt": "next tuesday"}, specs)
	require.Equal(t, ReasonInvalidValue, bad.Rejected["dueAt"])
}
