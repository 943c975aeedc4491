package linkfree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackNextRoundTrips(t *testing.T) {
	for _, tc := range []struct {
		ref    int
		marked bool
	}{
		{0, false},
		{0, true},
		{12345, false},
		{12345, true},
	} {
		word := packNext(tc.ref, tc.marked)
		gotRef, gotMarked := unpackNext(word)
		assert.Equal(t, tc.ref, gotRef)
		assert.Equal(t, tc.marked, gotMarked)
	}
}
