package hub

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateConnecting, StateOpen, true},
		{StateConnecting, StateClosed, true},
		{StateConnecting, StateDraining, false},
		{StateOpen, StateDraining, true},
		{StateOpen, StateClosed, true},
		{StateOpen, StateConnecting, false},
		{StateDraining, StateClosed, true},
		{StateDraining, StateOpen, false},
		{StateClosed, StateOpen, false},
		{StateClosed, StateDraining, false},
		{StateClosed, StateConnecting, false},
		{StateOpen, StateOpen, false},
	}

	for _, tc := range cases {
		if got := validTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("validTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRoleAndStateStrings(t *testing.T) {
	if RoleBroadcaster.String() != "broadcaster" || RoleListener.String() != "listener" {
		t.Error("unexpected role names")
	}
	if StateDraining.String() != "draining" || StateClosed.String() != "closed" {
		t.Error("unexpected state names")
	}
}
