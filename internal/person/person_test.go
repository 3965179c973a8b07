package person

import (
	"context"
	"sync"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  Bob@Example.COM ": "bob@example.com",
		"alice@example.com":  "alice@example.com",
	}
	for input, expected := range cases {
		got, err := NormalizeEmail(input)
		if err != nil {
			t.Fatalf("NormalizeEmail(%q): %v", input, err)
		}
		if got != expected {
			t.Fatalf("NormalizeEmail(%q)=%q, want %q", input, got, expected)
		}
	}

	for _, bad := range []string{"", "   ", "not-an-email", "a b@example.com"} {
		if _, err := NormalizeEmail(bad); err != ErrInvalidEmail {
			t.Fatalf("NormalizeEmail(%q): expected ErrInvalidEmail, got %v", bad, err)
		}
	}
}

func TestResolveCreatesOnce(t *testing.T) {
	d := NewInMemoryDirectory()
	ctx := context.Background()

	if _, err := d.FindByEmail(ctx, "bob@example.com"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first, err := d.Resolve(ctx, "Bob@Example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.Resolve(ctx, "bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("resolve not idempotent: %s != %s", first.ID, second.ID)
	}

	byID, err := d.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID.Email != "bob@example.com" {
		t.Fatalf("unexpected email: %s", byID.Email)
	}
}

func TestResolveConcurrent(t *testing.T) {
	d := NewInMemoryDirectory()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Person, 50)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := d.Resolve(ctx, "carol@example.com")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		if p.ID != results[0].ID {
			t.Fatalf("concurrent resolve created more than one person: %s vs %s", p.ID, results[0].ID)
		}
	}
}
