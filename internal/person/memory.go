package person

import (
	"context"
	"sync"
	"time"

	"weshare.org/internal/ids"
)

// InMemoryDirectory implements Directory with in-process concurrency safety.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]Person
	byID    map[string]Person
}

var _ Directory = (*InMemoryDirectory)(nil)

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		byEmail: make(map[string]Person),
		byID:    make(map[string]Person),
	}
}

func (d *InMemoryDirectory) Resolve(ctx context.Context, email string) (Person, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Person{}, err
	}

	// Single lock section so two racing resolutions of a new email cannot
	// both create a person.
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.byEmail[email]; ok {
		return p, nil
	}
	p := Person{
		ID:        ids.New(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	d.byEmail[email] = p
	d.byID[p.ID] = p
	return p, nil
}

func (d *InMemoryDirectory) FindByEmail(ctx context.Context, email string) (Person, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Person{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byEmail[email]
	if !ok {
		return Person{}, ErrNotFound
	}
	return p, nil
}

func (d *InMemoryDirectory) FindByID(ctx context.Context, id string) (Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	if !ok {
		return Person{}, ErrNotFound
	}
	return p, nil
}
