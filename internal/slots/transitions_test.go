package slots

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusAvailable, StatusBooked, true},
		{StatusAvailable, StatusDisabled, true},
		{StatusBooked, StatusDisabled, true},
		{StatusBooked, StatusAvailable, true},
		{StatusDisabled, StatusAvailable, true},
		{StatusDisabled, StatusBooked, false},
		{StatusDisabled, StatusDisabled, false},
		{StatusAvailable, StatusAvailable, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
