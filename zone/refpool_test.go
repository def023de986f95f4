package zone

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRefPoolAllocate(t *testing.T) {
	p := NewRefPool(4, 0)
	require.Equal(t, 1, p.Blocks())
	require.Equal(t, 4, p.Capacity())

	var ids []linkID
	for i := 0; i < 6; i++ {
		id, err := p.Allocate()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Equal(t, []linkID{1, 2, 3, 4, 5, 6}, ids)
	require.Equal(t, 6, p.InUse())
	require.Equal(t, 2, p.Blocks())
	require.Equal(t, 2, p.freeCount())
}

func TestRefPoolFree(t *testing.T) {
	p := NewRefPool(4, 0)

	a, err := p.Allocate()
	require.NoError(t, err)
	b, err := p.Allocate()
	require.NoError(t, err)

	t.Run("freed links are reused first", func(t *testing.T) {
		require.NoError(t, p.Free(a))
		require.Equal(t, 1, p.InUse())

		c, err := p.Allocate()
		require.NoError(t, err)
		require.Equal(t, a, c)
		require.Equal(t, linkMember, p.get(c).kind)
		require.False(t, p.get(c).isLinked())
	})

	t.Run("freeing a linked link fails", func(t *testing.T) {
		p.get(b).nextInBin = a
		err := p.Free(b)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvariant))
		require.Equal(t, 2, p.InUse())
		p.get(b).nextInBin = 0
	})

	t.Run("double free fails", func(t *testing.T) {
		require.NoError(t, p.Free(b))
		err := p.Free(b)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvariant))
		require.Equal(t, 1, p.InUse())
	})

	t.Run("nil link cannot be freed", func(t *testing.T) {
		require.Error(t, p.Free(0))
	})
}

func TestRefPoolExhausted(t *testing.T) {
	p := NewRefPool(2, 1)

	for i := 0; i < 2; i++ {
		_, err := p.Allocate()
		require.NoError(t, err)
	}

	_, err := p.Allocate()
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypePoolExhausted))
	require.Equal(t, 1, p.Blocks())
}

func TestRefPoolDefaultBlockSize(t *testing.T) {
	p := NewRefPool(0, 0)
	require.Equal(t, DefaultRefPoolBlockSize, p.Capacity())
}
