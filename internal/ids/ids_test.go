package ids

import "testing"

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("id %q not greater than %q", next, prev)
		}
		prev = next
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(New()) {
		t.Fatal("freshly minted id must be valid")
	}
	for _, s := range []string{"", "no-such-id", "0000000000000000000000000!"} {
		if IsValid(s) {
			t.Fatalf("%q must not validate", s)
		}
	}
}
