package officer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The owner checks run before any database access, so a nil pool doubles as
// proof that the short-circuit never reaches the officers table.

func TestAddOwnerIsRejected(t *testing.T) {
	t.Parallel()

	s := NewStore(nil, "owner-1")

	o, err := s.Add(context.Background(), "owner-1", "owner-1")
	require.ErrorIs(t, err, ErrOwnerReserved)
	assert.Nil(t, o)
}

func TestOwnerIsAlwaysAuthorized(t *testing.T) {
	t.Parallel()

	s := NewStore(nil, "owner-1")

	assert.True(t, s.IsOwner("owner-1"))
	assert.False(t, s.IsOwner("user-1"))

	ok, err := s.IsAuthorized(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
