package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/earshot-ai/earshot/pkg/kv"
)

// User is the stored identity anchor. Timestamps are UTC nanoseconds.
type User struct {
	ID         string    `msgpack:"id"`
	Email      string    `msgpack:"email"`
	Name       string    `msgpack:"name"`
	Voiceprint []float32 `msgpack:"vp,omitempty"`
	DeviceID   string    `msgpack:"dev,omitempty"`
	CreatedAt  int64     `msgpack:"created"`
	UpdatedAt  int64     `msgpack:"updated"`
}

// Enrolled reports whether the user has a stored voiceprint.
func (u User) Enrolled() bool {
	return len(u.Voiceprint) > 0
}

// Users persists user rows under ("user", <id>). Safe for concurrent
// use to the extent the underlying store is.
type Users struct {
	kv  kv.Store
	now func() time.Time
}

// NewUsers creates a user store over kv.
func NewUsers(store kv.Store) *Users {
	return &Users{kv: store, now: time.Now}
}

func userKey(id string) kv.Key {
	return kv.Key{"user", id}
}

// GetOrCreate returns the user for a verified identity, creating the
// row on first contact. The reported bool is true when the row was
// created. An existing row is returned as stored; later changes to the
// caller's name or email do not rewrite it.
func (u *Users) GetOrCreate(ctx context.Context, id Identity) (User, bool, error) {
	if id.ID == "" {
		return User{}, false, errors.New("identity: empty identity id")
	}

	existing, err := u.Get(ctx, id.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return User{}, false, err
	}

	now := u.now().UTC().UnixNano()
	user := User{
		ID:        id.ID,
		Email:     id.Email,
		Name:      id.DisplayName(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.put(ctx, user); err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

// Get loads one user. Missing users report kv.ErrNotFound.
func (u *Users) Get(ctx context.Context, userID string) (User, error) {
	data, err := u.kv.Get(ctx, userKey(userID))
	if err != nil {
		return User{}, fmt.Errorf("identity: load user %s: %w", userID, err)
	}
	var user User
	if err := msgpack.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("identity: decode user %s: %w", userID, err)
	}
	return user, nil
}

// SetVoiceprint stores (or overwrites) the user's enrollment vector and
// returns the updated row.
func (u *Users) SetVoiceprint(ctx context.Context, userID string, voiceprint []float32) (User, error) {
	user, err := u.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	user.Voiceprint = slices.Clone(voiceprint)
	user.UpdatedAt = u.now().UTC().UnixNano()
	if err := u.put(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *Users) put(ctx context.Context, user User) error {
	data, err := msgpack.Marshal(user)
	if err != nil {
		return fmt.Errorf("identity: encode user %s: %w", user.ID, err)
	}
	if err := u.kv.Set(ctx, userKey(user.ID), data); err != nil {
		return fmt.Errorf("identity: store user %s: %w", user.ID, err)
	}
	return nil
}
