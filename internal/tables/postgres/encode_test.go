package postgres

import (
	"testing"
	"time"

	"dompet/internal/tables"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	v, err := encode(tables.Column{Name: "date", Kind: tables.Date}, "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), v)

	v, err = encode(tables.Column{Name: "deadline", Kind: tables.Date, Nullable: true}, "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = encode(tables.Column{Name: "created_at", Kind: tables.Timestamp}, "2024-01-02T03:04:05.000000Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), v)

	v, err = encode(tables.Column{Name: "amount", Kind: tables.Int}, int64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}
