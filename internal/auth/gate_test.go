package auth

import "testing"

func TestIsAdmin(t *testing.T) {
	t.Parallel()
	g := NewGate([]int64{10, 20}, "")

	if !g.IsAdmin(10) || !g.IsAdmin(20) {
		t.Fatal("roster members must be admins")
	}
	if g.IsAdmin(30) {
		t.Fatal("non-member reported as admin")
	}
}

func TestCheckSecret(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		secret    string
		submitted string
		want      bool
	}{
		{name: "match", secret: "swordfish", submitted: "swordfish", want: true},
		{name: "mismatch", secret: "swordfish", submitted: "wrong", want: false},
		{name: "case sensitive", secret: "swordfish", submitted: "Swordfish", want: false},
		{name: "empty configured fails closed", secret: "", submitted: "", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewGate(nil, tt.secret)
			if got := g.CheckSecret(tt.submitted); got != tt.want {
				t.Fatalf("CheckSecret(%q) = %v, want %v", tt.submitted, got, tt.want)
			}
		})
	}
}

func TestSecretRequired(t *testing.T) {
	t.Parallel()
	if NewGate(nil, "").SecretRequired() {
		t.Fatal("empty secret must not require a challenge")
	}
	if !NewGate(nil, "x").SecretRequired() {
		t.Fatal("configured secret must require a challenge")
	}
}
