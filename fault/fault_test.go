package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageFormat(t *testing.T) {
	err := NotFound("no credential for user", nil)
	assert.Equal(t, "not_found: no credential for user", err.Error())

	wrapped := StoreUnavailable("reading envelope", errors.New("connection refused"))
	assert.Equal(t, "store_unavailable: reading envelope: connection refused", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := StoreUnavailable("writing envelope", cause)

	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindCorruptCredential, KindOf(CorruptCredential("bad tag", nil)))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindOf_Wrapped(t *testing.T) {
	// Classification must survive fmt.Errorf wrapping by callers.
	inner := Unauthorized("refresh secret revoked", nil)
	outer := fmt.Errorf("refreshing token: %w", inner)

	require.Equal(t, KindUnauthorized, KindOf(outer))
	assert.False(t, IsRecoverable(outer))
}

func TestIsRecoverable_Defaults(t *testing.T) {
	assert.True(t, IsRecoverable(TransientNetwork("rate limited", nil)))
	assert.True(t, IsRecoverable(StoreUnavailable("down", nil)))

	assert.False(t, IsRecoverable(NotFound("absent", nil)))
	assert.False(t, IsRecoverable(InvalidState("replayed", nil)))
	assert.False(t, IsRecoverable(CorruptCredential("tampered", nil)))
	assert.False(t, IsRecoverable(Unauthorized("dead credential", nil)))

	// Unclassified errors must never look retryable.
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("absent", nil)))
	assert.False(t, IsNotFound(InvalidState("replayed", nil)))
	assert.False(t, IsNotFound(nil))
}
