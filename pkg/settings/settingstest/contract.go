// Package settingstest holds the behavioural contract every settings.Store
// backend is tested against.
package settingstest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// RunStoreContract exercises opener against the settings.Store contract.
// Each subtest opens its own settings name.
func RunStoreContract(t *testing.T, opener settings.Opener) {
	t.Helper()

	open := func(t *testing.T, name string) settings.Store {
		t.Helper()
		s, err := opener.Open(name)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("new store is empty", func(t *testing.T) {
		s := open(t, "empty")
		assert.Equal(t, "empty", s.Name())
		all, err := s.All()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("put round trips every kind", func(t *testing.T) {
		s := open(t, "kinds")
		want := map[string]settings.Value{
			"bool":        settings.Bool(true),
			"string":      settings.String("héllo, wörld"),
			"empty":       settings.String(""),
			"int32.min":   settings.Int32(math.MinInt32),
			"int32.max":   settings.Int32(math.MaxInt32),
			"int64.min":   settings.Int64(math.MinInt64),
			"int64.max":   settings.Int64(math.MaxInt64),
			"float32.min": settings.Float32(math.SmallestNonzeroFloat32),
			"float32.max": settings.Float32(math.MaxFloat32),
		}
		ed := s.Edit()
		for k, v := range want {
			ed.Put(k, v)
		}
		require.NoError(t, ed.Commit())

		got, err := s.All()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("uncommitted edits are invisible", func(t *testing.T) {
		s := open(t, "pending")
		ed := s.Edit()
		ed.Put("k", settings.Int32(1))

		all, err := s.All()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("put overwrites kind", func(t *testing.T) {
		s := open(t, "overwrite")
		ed := s.Edit()
		ed.Put("k", settings.Int32(1))
		require.NoError(t, ed.Commit())

		ed = s.Edit()
		ed.Put("k", settings.String("one"))
		require.NoError(t, ed.Commit())

		all, err := s.All()
		require.NoError(t, err)
		assert.Equal(t, map[string]settings.Value{"k": settings.String("one")}, all)
	})

	t.Run("remove and clear", func(t *testing.T) {
		s := open(t, "remove")
		ed := s.Edit()
		ed.Put("a", settings.Bool(true))
		ed.Put("b", settings.Bool(false))
		ed.Put("c", settings.Int64(3))
		require.NoError(t, ed.Commit())

		ed = s.Edit()
		ed.Remove("a")
		ed.Remove("missing")
		require.NoError(t, ed.Commit())

		all, err := s.All()
		require.NoError(t, err)
		assert.Equal(t, map[string]settings.Value{
			"b": settings.Bool(false),
			"c": settings.Int64(3),
		}, all)

		ed = s.Edit()
		ed.Clear()
		ed.Put("d", settings.Float32(1.5))
		require.NoError(t, ed.Commit())

		all, err = s.All()
		require.NoError(t, err)
		assert.Equal(t, map[string]settings.Value{"d": settings.Float32(1.5)}, all)
	})

	t.Run("names are isolated", func(t *testing.T) {
		a := open(t, "iso-a")
		b := open(t, "iso-b")
		ed := a.Edit()
		ed.Put("k", settings.String("a"))
		require.NoError(t, ed.Commit())

		all, err := b.All()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("handles on one name share data", func(t *testing.T) {
		a := open(t, "shared")
		b := open(t, "shared")
		ed := a.Edit()
		ed.Put("k", settings.Int32(7))
		require.NoError(t, ed.Commit())

		all, err := b.All()
		require.NoError(t, err)
		assert.Equal(t, settings.Int32(7), all["k"])
	})

	t.Run("snapshot is owned by caller", func(t *testing.T) {
		s := open(t, "owned")
		ed := s.Edit()
		ed.Put("k", settings.Bool(true))
		require.NoError(t, ed.Commit())

		all, err := s.All()
		require.NoError(t, err)
		delete(all, "k")

		again, err := s.All()
		require.NoError(t, err)
		assert.Len(t, again, 1)
	})

	t.Run("revision moves on commit", func(t *testing.T) {
		s := open(t, "revision")
		rev, ok := s.(settings.Revisioner)
		if !ok {
			t.Skip("store does not report revisions")
		}
		before, err := rev.Revision()
		require.NoError(t, err)

		ed := s.Edit()
		ed.Put("k", settings.Int32(1))
		require.NoError(t, ed.Commit())

		after, err := rev.Revision()
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("invalid names are rejected", func(t *testing.T) {
		for _, name := range []string{"", "..", "a/b"} {
			_, err := opener.Open(name)
			assert.ErrorIs(t, err, settings.ErrInvalidName, "name %q", name)
		}
	})
}
