package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	v, err := ToMinor(decimal.RequireFromString("499.99"))
	require.NoError(t, err)
	assert.Equal(t, int64(49999), v)

	v, err = ToMinor(decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	_, err = ToMinor(decimal.RequireFromString("1.005"))
	assert.Error(t, err)
}

func TestFromMinor(t *testing.T) {
	assert.Equal(t, "499.99", Format(FromMinor(49999)))
	assert.Equal(t, "0.05", Format(FromMinor(5)))
}
