package soft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackRefStateRoundTrips(t *testing.T) {
	for _, tc := range []struct {
		ref int
		st  uint64
	}{
		{0, IntendToInsert},
		{0, Deleted},
		{98765, Inserted},
		{98765, IntendToDelete},
	} {
		word := pack(tc.ref, tc.st)
		assert.Equal(t, tc.ref, ref(word))
		assert.Equal(t, tc.st, state(word))
	}
}
