package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	encoded := EncodeCursor("item-42", ts)
	require.NotEmpty(t, encoded)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "item-42", cursor.LastID)
	assert.True(t, cursor.Timestamp.Equal(ts))
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("")

	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []string{
		"not base64!!!",
		"aGVsbG8=",             // decodes but has no separator
		"aWQtMXxub3QtYS10aW1l", // "id-1|not-a-time"
	}

	for _, raw := range tests {
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	}
}

type pagedItem struct {
	ID        string
	CreatedAt time.Time
}

func TestNextCursor_FullPage(t *testing.T) {
	items := []pagedItem{
		{ID: "a", CreatedAt: time.Now().Add(-2 * time.Minute)},
		{ID: "b", CreatedAt: time.Now().Add(-time.Minute)},
	}

	next := NextCursor(items, 2,
		func(i pagedItem) string { return i.ID },
		func(i pagedItem) time.Time { return i.CreatedAt },
	)

	require.NotEmpty(t, next)
	cursor, err := DecodeCursor(next)
	require.NoError(t, err)
	assert.Equal(t, "b", cursor.LastID)
}

func TestNextCursor_PartialPage(t *testing.T) {
	items := []pagedItem{{ID: "a", CreatedAt: time.Now()}}

	next := NextCursor(items, 2,
		func(i pagedItem) string { return i.ID },
		func(i pagedItem) time.Time { return i.CreatedAt },
	)

	assert.Empty(t, next)
}

func TestNextCursor_EmptyPage(t *testing.T) {
	next := NextCursor(nil, 10,
		func(i pagedItem) string { return i.ID },
		func(i pagedItem) time.Time { return i.CreatedAt },
	)

	assert.Empty(t, next)
}
