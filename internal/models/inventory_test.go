package models

import "testing"

func TestChangeTypeSemantics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		changeType     ChangeType
		valid          bool
		requiresReason bool
		clampsAtZero   bool
	}{
		{ChangeRestock, true, true, true},
		{ChangeAdjustment, true, true, true},
		{ChangeDamaged, true, true, true},
		{ChangeReturn, true, true, true},
		{ChangeSale, true, false, false},
		{ChangeType("theft"), false, true, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.changeType), func(t *testing.T) {
			t.Parallel()

			if got := tc.changeType.Valid(); got != tc.valid {
				t.Errorf("Valid() = %v, want %v", got, tc.valid)
			}
			if got := tc.changeType.RequiresReason(); got != tc.requiresReason {
				t.Errorf("RequiresReason() = %v, want %v", got, tc.requiresReason)
			}
			if got := tc.changeType.ClampsAtZero(); got != tc.clampsAtZero {
				t.Errorf("ClampsAtZero() = %v, want %v", got, tc.clampsAtZero)
			}
		})
	}
}
