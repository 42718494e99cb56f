package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionEncoding(t *testing.T) {
	t.Run("round trips the sequence number", func(t *testing.T) {
		revision, err := EncodeRevision(1646130600000, 1234, 7)
		require.NoError(t, err)

		sequence, err := DecodeSequenceNumber(revision)
		require.NoError(t, err)
		assert.Equal(t, uint64(1234), sequence)
	})

	t.Run("orders by sequence then index", func(t *testing.T) {
		first, _ := EncodeRevision(1646130600000, 9, 1)
		second, _ := EncodeRevision(1646130600000, 10, 0)
		third, _ := EncodeRevision(1646130600000, 10, 1)

		assert.Less(t, first.String(), second.String())
		assert.Less(t, second.String(), third.String())
	})

	t.Run("rejects invalid revisions", func(t *testing.T) {
		_, err := DecodeSequenceNumber("not-a-revision")
		assert.Error(t, err)
	})
}
