package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	tests := []struct {
		role string
		perm string
		want bool
	}{
		{"student", "attempt:create", true},
		{"student", "attempt:submit", true},
		{"student", "exam:view", true},
		{"student", "exam:create", false},
		{"student", "reconcile:run", false},
		// admins manage exams but never sit them
		{"admin", "exam:create", true},
		{"admin", "exam:delete", true},
		{"admin", "reconcile:run", true},
		{"admin", "attempt:create", false},
		{"admin", "attempt:submit", false},
		{"unknown", "exam:view", false},
		{"", "exam:view", false},
	}
	for _, tc := range tests {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestWildcardMatch(t *testing.T) {
	c := NewChecker(map[string][]string{"ops": {"*"}, "viewer": {"exam:*"}})

	if !c.Has("ops", "anything:at-all") {
		t.Error("bare * should grant everything")
	}
	if !c.Has("viewer", "exam:delete") {
		t.Error("exam:* should cover exam:delete")
	}
	if c.Has("viewer", "attempt:create") {
		t.Error("exam:* must not cover attempt:create")
	}
}

func TestAny(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any("student", "exam:manage", "exam:view") {
		t.Error("Any should pass when one permission matches")
	}
	if c.Any("student", "exam:manage", "exam:create") {
		t.Error("Any should fail when none match")
	}
}
