package models

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestStoreAdd(t *testing.T) {
	t.Run("assigns sequential ids", func(t *testing.T) {
		s := NewStore()

		a := NewObject("a", "cactus", mgl32.Vec3{}, 1, 1)
		b := NewObject("b", "cactus", mgl32.Vec3{}, 1, 1)
		require.NoError(t, s.Add(a))
		require.NoError(t, s.Add(b))

		require.Equal(t, ObjectID(1), a.ID)
		require.Equal(t, ObjectID(2), b.ID)
		require.Equal(t, 2, s.Len())
	})

	t.Run("adding a duplicate name returns an error", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Add(NewObject("a", "tree", mgl32.Vec3{}, 1, 1)))

		err := s.Add(NewObject("a", "tree", mgl32.Vec3{}, 1, 1))
		require.Error(t, err)
		require.Equal(t, ErrTypeDuplicateObject, errors.Type(err))
		require.Equal(t, 1, s.Len())
	})

	t.Run("adding an unnamed object returns an error", func(t *testing.T) {
		s := NewStore()

		err := s.Add(NewObject("", "tree", mgl32.Vec3{}, 1, 1))
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidObject, errors.Type(err))

		err = s.Add(nil)
		require.Error(t, err)
		require.Zero(t, s.Len())
	})
}

func TestStoreGet(t *testing.T) {
	s := NewStore()
	a := NewObject("a", "post", mgl32.Vec3{}, 1, 1)
	require.NoError(t, s.Add(a))

	o, ok := s.Get(a.ID)
	require.True(t, ok)
	require.Same(t, a, o)

	o, ok = s.GetByName("a")
	require.True(t, ok)
	require.Same(t, a, o)

	_, ok = s.Get(42)
	require.False(t, ok)

	_, ok = s.GetByName("z")
	require.False(t, ok)
}

func TestStoreRemove(t *testing.T) {
	t.Run("removes an object and reuses its id", func(t *testing.T) {
		s := NewStore()
		a := NewObject("a", "post", mgl32.Vec3{}, 1, 1)
		b := NewObject("b", "post", mgl32.Vec3{}, 1, 1)
		require.NoError(t, s.Add(a))
		require.NoError(t, s.Add(b))

		o, ok := s.Remove(a.ID)
		require.True(t, ok)
		require.Same(t, a, o)

		_, ok = s.GetByName("a")
		require.False(t, ok)

		c := NewObject("c", "post", mgl32.Vec3{}, 1, 1)
		require.NoError(t, s.Add(c))
		require.Equal(t, ObjectID(1), c.ID)
	})

	t.Run("removing a missing object does nothing", func(t *testing.T) {
		s := NewStore()

		_, ok := s.Remove(7)
		require.False(t, ok)
	})
}

func TestStoreList(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.Add(NewObject(name, "tree", mgl32.Vec3{}, 1, 1)))
	}
	require.NoError(t, s.Add(NewObject("d", "cactus", mgl32.Vec3{}, 1, 1)))

	objects := s.List()
	require.Len(t, objects, 4)
	for i, o := range objects {
		require.Equal(t, ObjectID(i+1), o.ID)
	}

	require.Equal(t, map[string]int{"tree": 3, "cactus": 1}, s.CountByKind())
}

func TestObjectFootprint(t *testing.T) {
	o := NewObject("a", "tree", mgl32.Vec3{10, 5, 20}, 4, 2)
	require.True(t, o.Culled)

	r := o.Footprint()
	require.Equal(t, float32(8), r.MinX)
	require.Equal(t, float32(19), r.MinZ)
	require.Equal(t, float32(12), r.MaxX)
	require.Equal(t, float32(21), r.MaxZ)

	o.SetPosition(mgl32.Vec3{0, 0, 0})
	o.SetFootprint(2, 2)
	r = o.Footprint()
	require.Equal(t, float32(-1), r.MinX)
	require.Equal(t, float32(1), r.MaxZ)
}
