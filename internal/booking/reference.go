package booking

import (
	"context"
	"crypto/rand"
	"fmt"

	"pitstop/internal/model"
)

// referenceAlphabet omits 0/O/1/I to keep references readable over the
// phone.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	referenceLength      = 8
	maxReferenceAttempts = 10
)

// ReferenceChecker reports whether a reference is already persisted.
type ReferenceChecker interface {
	ReferenceExists(ctx context.Context, ref string) (bool, error)
}

// ReferenceGenerator allocates short, unique, human-readable reservation
// references.
type ReferenceGenerator struct {
	checker ReferenceChecker
}

// NewReferenceGenerator creates a generator backed by the given checker.
func NewReferenceGenerator(checker ReferenceChecker) *ReferenceGenerator {
	return &ReferenceGenerator{checker: checker}
}

// Allocate draws a reference and retries on collision against the persisted
// set. The retry loop is capped; exhaustion is an internal error.
func (g *ReferenceGenerator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := randomReference()
		if err != nil {
			return "", fmt.Errorf("%w: draw reference: %v", model.ErrInternal, err)
		}

		taken, err := g.checker.ReferenceExists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("%w: check reference: %v", model.ErrInternal, err)
		}
		if !taken {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate reference after %d attempts", model.ErrInternal, maxReferenceAttempts)
}

func randomReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(buf), nil
}
