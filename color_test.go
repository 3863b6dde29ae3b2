package harmony

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColors(t *testing.T) {
	require.Len(t, Colors, 2)
	for _, color := range Colors {
		parsed, err := ParseColor(color.String())
		require.NoError(t, err)
		require.Equal(t, color, parsed)
		require.NotEqual(t, color, color.Other())
		require.Contains(t, Colors[:], color.Other())
	}
	_, err := ParseColor("green")
	require.True(t, ErrorHasStatus(err, ErrorStatusInvalidRequest))
}
