package persist

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/metailurini/durableset"
)

func TestCollectorExportsFlushCount(t *testing.T) {
	s, err := New(2, 2)
	require.NoError(t, err)

	addr := durableset.Addr{Owner: 1, Cell: s.RetrieveAddress(1)}
	s.Flush(addr, 1, 1, 3, 0)

	c := NewCollector(s)
	const expected = `
# HELP durableset_flushes_total Number of persistent-cell flushes issued, by owner.
# TYPE durableset_flushes_total counter
durableset_flushes_total{owner="0"} 0
durableset_flushes_total{owner="1"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "durableset_flushes_total"))
}
