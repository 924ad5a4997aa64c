package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/dmitrijs2005/wayne/internal/common"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinBcryptCost is the lowest cost accepted for stored password hashes.
const MinBcryptCost = 12

// PasswordHasher hashes and verifies identity passwords with bcrypt. The
// number of concurrent bcrypt operations is capped so a burst of logins
// cannot starve the rest of the process.
type PasswordHasher struct {
	cost  int
	slots *semaphore.Weighted

	// dummy is compared against when the user does not exist, so both
	// failure paths of a login spend one bcrypt comparison.
	dummy []byte
}

// NewPasswordHasher returns a hasher with the given cost (raised to
// MinBcryptCost if lower) and concurrency limit (GOMAXPROCS when <= 0).
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d exceeds %d", cost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("wayne-dummy-password"), cost)
	if err != nil {
		return nil, err
	}

	return &PasswordHasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(concurrency)),
		dummy: dummy,
	}, nil
}

// Hash returns the bcrypt hash of password.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether password matches hash. A mismatch is (false, nil);
// errors are reserved for cancellation and malformed hashes. Passwords longer
// than common.MaxPasswordLength never match but still cost one comparison.
func (h *PasswordHasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	if len(password) > common.MaxPasswordLength {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password[:common.MaxPasswordLength]))
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// CompareDummy burns one comparison against a fixed hash; the result is
// always a mismatch.
func (h *PasswordHasher) CompareDummy(ctx context.Context, password string) error {
	_, err := h.Compare(ctx, string(h.dummy), password)
	return err
}
