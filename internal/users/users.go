// Package users keeps the directory of people the bot texts.
package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/textbot/internal/actions"
)

// ErrNotFound is returned when no user has the given ID.
var ErrNotFound = errors.New("user not found")

// User is one registered phone number and what the bot knows about them.
type User struct {
	ID        actions.UserID `json:"id"`
	Interests []string       `json:"interests"`
	Persona   string         `json:"persona"`
	CreatedAt time.Time      `json:"created_at"`
}

// Directory lists and stores users.
type Directory interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id actions.UserID) (User, error)
	Upsert(ctx context.Context, u User) error
}

// Validate checks the user can be texted.
func (u User) Validate() error {
	id := strings.TrimSpace(string(u.ID))
	if id == "" {
		return errors.New("user id is required")
	}
	if !strings.HasPrefix(id, "+") {
		return errors.New("user id must be an E.164 phone number")
	}
	return nil
}

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[actions.UserID]User
}

// NewMemoryDirectory returns a directory seeded with the given users.
func NewMemoryDirectory(seed ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[actions.UserID]User)}
	for _, u := range seed {
		d.users[u.ID] = u
	}
	return d
}

// List returns users ordered by ID.
func (d *MemoryDirectory) List(_ context.Context) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemoryDirectory) Get(_ context.Context, id actions.UserID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, u User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	d.users[u.ID] = u
	return nil
}
