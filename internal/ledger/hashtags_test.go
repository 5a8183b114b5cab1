package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nitedsync/internal/ledger"
)

func TestHashtags(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"btc", "hodl"}, ledger.Hashtags("buy #BTC and #hodl, then #btc again"))
	require.Empty(t, ledger.Hashtags("no tags here"))
	require.Equal(t, []string{"web3"}, ledger.Hashtags("#web3"))
}
