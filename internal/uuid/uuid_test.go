package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

func TestNewRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		parsed, err := ParseRunID(id)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	got, err := ParseRunID("  550E8400-E29B-41D4-A716-446655440000 ")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", got)

	for _, bad := range []string{
		"",
		"not-a-uuid",
		"550e8400e29b41d4a716446655440000",
		"{550e8400-e29b-41d4-a716-446655440000}",
		"550e8400-e29b-11d4-a716-446655440000", // v1
		"../../etc/passwd",
	} {
		_, err := ParseRunID(bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalid), "input %q", bad)
	}
}
