package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC), ID: uuid.New()}

	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	c, err := ParseCursor("  ")
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = ParseCursor("!!!")
	assert.Error(t, err)

	_, err = ParseCursor(EncodeCursor(Cursor{ID: uuid.New()})[:4])
	assert.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrim(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	base := time.Now().UTC()
	rows := []row{{uuid.New(), base}, {uuid.New(), base.Add(-time.Minute)}, {uuid.New(), base.Add(-2 * time.Minute)}}
	pos := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 2, pos)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	c, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, c.ID)

	page, next = Trim(rows, 5, pos)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
