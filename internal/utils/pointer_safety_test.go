package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-gate-pass/internal/utils"
)

func TestValue(t *testing.T) {
	require.Equal(t, int64(0), utils.Value[int64](nil))
	require.Equal(t, int64(7), utils.Value(utils.Ptr(int64(7))))
}

func TestNonZeroPtr(t *testing.T) {
	require.Nil(t, utils.NonZeroPtr(time.Time{}))

	at := time.Unix(1000, 0)
	p := utils.NonZeroPtr(at)
	require.NotNil(t, p)
	require.True(t, at.Equal(*p))
	require.True(t, utils.Value(p).Equal(at))
	require.True(t, utils.Value[time.Time](nil).IsZero())
}
