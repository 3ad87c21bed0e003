package principal

import "testing"

func TestNew_RequiresUsername(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestCanActAs(t *testing.T) {
	p, err := New("alice", []string{"surveyors", "admins"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		owner string
		want  bool
	}{
		{"alice", true},
		{"surveyors", true},
		{"admins", true},
		{"bob", false},
		{"", false},
	}
	for _, c := range cases {
		if got := p.CanActAs(c.owner); got != c.want {
			t.Errorf("CanActAs(%q) = %v, want %v", c.owner, got, c.want)
		}
	}
}
