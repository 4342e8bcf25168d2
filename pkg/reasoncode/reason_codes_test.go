package reasoncode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAll_UniqueNamedAndOrdered(t *testing.T) {
	all := All()
	assert.Len(t, all, len(names), "every registered code is listed exactly once")

	seen := make(map[Code]bool, len(all))
	seenName := make(map[string]bool, len(all))
	for i, c := range all {
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
		assert.True(t, c.Known(), "%08X", uint32(c))
		assert.False(t, seenName[c.Name()], "duplicate name %s", c.Name())
		seenName[c.Name()] = true
		if i > 0 {
			assert.Less(t, all[i-1], c, "All is in family order")
		}
	}
}

func TestFamily(t *testing.T) {
	tests := []struct {
		code   Code
		family Family
	}{
		{OKTurnCompleted, FamilyOK},
		{GateLeaseNotHeld, FamilyGate},
		{GovContradiction, FamilyGovernance},
		{OutcomeOptionalBudgetMismatch, FamilyOutcome},
		{TurnInFlight, FamilyTurnShape},
		{ThreadResumeCursorInvalid, FamilyThread},
		{ContractDirectiveInvalid, FamilyContract},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.family, tt.code.Family(), tt.code.String())
	}
	assert.True(t, OKGatesPassed.IsOK())
	assert.False(t, GateAccessDenied.IsOK())
}

func TestString(t *testing.T) {
	assert.Equal(t, "GOV_CONTRADICTION(0x0A030001)", GovContradiction.String())
	assert.Equal(t, "UNKNOWN(0x0A0F0001)", Code(0x0A0F0001).String())
	assert.Empty(t, Code(1).Name())
	assert.False(t, Code(1).Known())
	assert.Equal(t, "turn_shape", FamilyTurnShape.String())
	assert.Equal(t, "family(0x0A0F)", Family(0x0A0F).String())
}
