package prefs_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/typedprefs/pkg/prefs"
	"github.com/kalambet/typedprefs/pkg/settings"
	"github.com/kalambet/typedprefs/pkg/settings/memory"
)

const fileName = "preferences"

type Point struct {
	X int
	Y int
}

type Theme int32

var (
	kTheme = prefs.MustDescriptor("theme", int32(0))
	kObj   = prefs.MustDescriptor("obj", Point{X: 1, Y: 2})
)

func newHandler(t *testing.T, opener settings.Opener, opts ...prefs.Option) *prefs.Handler {
	t.Helper()
	h, err := prefs.New(prefs.NewDefinition(fileName, kTheme, kObj), opener, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// putRaw writes a value behind the handler's back.
func putRaw(t *testing.T, opener settings.Opener, key string, v settings.Value) {
	t.Helper()
	s, err := opener.Open(fileName)
	require.NoError(t, err)
	defer s.Close()
	ed := s.Edit()
	ed.Put(key, v)
	require.NoError(t, ed.Commit())
}

func TestGetPersistsDefault(t *testing.T) {
	h := newHandler(t, memory.New())
	assert.NotContains(t, h.Snapshot(), "theme")

	v, err := prefs.Get(h, kTheme)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
	assert.Equal(t, settings.Int32(0), h.Snapshot()["theme"])
}

func TestThemeScenario(t *testing.T) {
	h := newHandler(t, memory.New())

	require.NoError(t, prefs.Set(h, kTheme, 2))
	v, err := kTheme.Get(h)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	require.NoError(t, kTheme.Clear(h))
	v, err = kTheme.Get(h)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
}

func TestObjectScenario(t *testing.T) {
	h := newHandler(t, memory.New())

	v, err := prefs.Get(h, kObj)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2}, v)

	require.NoError(t, prefs.Set(h, kObj, Point{X: 3, Y: 4}))
	raw := h.Snapshot()["obj"]
	require.Equal(t, settings.KindString, raw.Kind())
	assert.JSONEq(t, `{"X":3,"Y":4}`, raw.Text())

	v, err = prefs.Get(h, kObj)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 3, Y: 4}, v)
}

func roundTrip[T any](t *testing.T, h *prefs.Handler, def, v T) {
	t.Helper()
	d := prefs.MustDescriptor(t.Name(), def)
	require.NoError(t, prefs.Set(h, d, v))
	got, err := prefs.Get(h, d)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestPrimitiveRoundTrip(t *testing.T) {
	h := newHandler(t, memory.New())

	t.Run("bool", func(t *testing.T) { roundTrip(t, h, true, false) })
	t.Run("string", func(t *testing.T) { roundTrip(t, h, "", "héllo, wörld") })
	t.Run("int32 min", func(t *testing.T) { roundTrip(t, h, int32(0), int32(math.MinInt32)) })
	t.Run("int32 max", func(t *testing.T) { roundTrip(t, h, int32(0), int32(math.MaxInt32)) })
	t.Run("int64 min", func(t *testing.T) { roundTrip(t, h, int64(0), int64(math.MinInt64)) })
	t.Run("int64 max", func(t *testing.T) { roundTrip(t, h, int64(0), int64(math.MaxInt64)) })
	t.Run("float32 max", func(t *testing.T) { roundTrip(t, h, float32(0), float32(math.MaxFloat32)) })
	t.Run("float32 smallest", func(t *testing.T) { roundTrip(t, h, float32(0), float32(math.SmallestNonzeroFloat32)) })
	t.Run("named int32", func(t *testing.T) { roundTrip(t, h, Theme(0), Theme(2)) })
}

func TestComplexRoundTripPerCodec(t *testing.T) {
	type complexClass struct {
		Name  string
		Value int
		List  []int
	}
	def := complexClass{Name: "Complex ^", Value: 10, List: []int{1, 2, 3}}
	next := complexClass{Name: "changed", Value: -7, List: []int{4}}

	for _, codec := range []prefs.Codec{prefs.JSONCodec{}, prefs.YAMLCodec{}, prefs.TOMLCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			h := newHandler(t, memory.New(), prefs.WithCodec(codec))
			d := prefs.MustDescriptor("complex", def)

			got, err := prefs.Get(h, d)
			require.NoError(t, err)
			assert.Equal(t, def, got)

			require.NoError(t, prefs.Set(h, d, next))
			got, err = prefs.Get(h, d)
			require.NoError(t, err)
			assert.Equal(t, next, got)
		})
	}
}

func TestGoIntIsComplex(t *testing.T) {
	d := prefs.MustDescriptor("count", 5)
	assert.Equal(t, prefs.KindComplex, d.Kind())
	assert.False(t, d.IsPrimitiveType())

	h := newHandler(t, memory.New())
	require.NoError(t, prefs.Set(h, d, 42))
	assert.Equal(t, settings.String("42"), h.Snapshot()["count"])

	v, err := prefs.Get(h, d)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestKinds(t *testing.T) {
	tests := []struct {
		entry prefs.Entry
		want  prefs.Kind
	}{
		{prefs.MustDescriptor("b", true), prefs.KindBool},
		{prefs.MustDescriptor("s", "x"), prefs.KindString},
		{prefs.MustDescriptor("i32", int32(1)), prefs.KindInt32},
		{prefs.MustDescriptor("f32", float32(1)), prefs.KindFloat32},
		{prefs.MustDescriptor("i64", int64(1)), prefs.KindInt64},
		{prefs.MustDescriptor("named", Theme(1)), prefs.KindInt32},
		{prefs.MustDescriptor("f64", 1.5), prefs.KindComplex},
		{prefs.MustDescriptor("slice", []string{"a"}), prefs.KindComplex},
		{prefs.MustDescriptor[any]("iface", int64(3)), prefs.KindInt64},
	}
	for _, tt := range tests {
		t.Run(tt.entry.Key(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Kind())
			assert.Equal(t, tt.want != prefs.KindComplex, tt.entry.IsPrimitiveType())
		})
	}
}

func TestClearAllRestoresDefaults(t *testing.T) {
	backend := memory.New()
	h := newHandler(t, backend)
	putRaw(t, backend, "unrelated", settings.Bool(true))
	require.NoError(t, prefs.Set(h, kTheme, 1))
	require.NoError(t, prefs.Set(h, kObj, Point{X: 9}))

	require.NoError(t, h.ClearAll())
	assert.Empty(t, h.Snapshot())

	theme, err := prefs.Get(h, kTheme)
	require.NoError(t, err)
	assert.Equal(t, int32(0), theme)
	obj, err := prefs.Get(h, kObj)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2}, obj)
}

func TestNilRejected(t *testing.T) {
	_, err := prefs.NewDescriptor[*Point]("ptr", nil)
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	_, err = prefs.NewDescriptor[[]int]("slice", nil)
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	_, err = prefs.NewDescriptor[any]("iface", nil)
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	_, err = prefs.NewDescriptor("", int32(0))
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	h := newHandler(t, memory.New())
	d := prefs.MustDescriptor("list", []int{1})
	assert.ErrorIs(t, prefs.Set(h, d, nil), prefs.ErrInvalidArgument)
	assert.ErrorIs(t, h.SetAny(kTheme, nil), prefs.ErrInvalidArgument)
	assert.NotContains(t, h.Snapshot(), "list")
}

func TestStoredKindMismatch(t *testing.T) {
	backend := memory.New()
	h := newHandler(t, backend)

	putRaw(t, backend, "theme", settings.String("dark"))
	putRaw(t, backend, "obj", settings.Int64(3))
	require.NoError(t, h.RefreshCache())

	_, err := prefs.Get(h, kTheme)
	assert.ErrorIs(t, err, prefs.ErrTypeMismatch)
	_, err = prefs.Get(h, kObj)
	assert.ErrorIs(t, err, prefs.ErrTypeMismatch)

	// int32 and int64 are distinct kinds.
	putRaw(t, backend, "theme", settings.Int64(1))
	require.NoError(t, h.RefreshCache())
	_, err = prefs.Get(h, kTheme)
	assert.ErrorIs(t, err, prefs.ErrTypeMismatch)
}

func TestUndecodableText(t *testing.T) {
	backend := memory.New()
	h := newHandler(t, backend)
	putRaw(t, backend, "obj", settings.String("{not json"))
	require.NoError(t, h.RefreshCache())

	_, err := prefs.Get(h, kObj)
	assert.ErrorIs(t, err, prefs.ErrDeserialization)
}

func TestStrictPolicy(t *testing.T) {
	h := newHandler(t, memory.New())

	err := h.SetAny(kObj, map[string]int{"X": 1})
	assert.ErrorIs(t, err, prefs.ErrUnsupportedType)

	err = h.SetAny(kTheme, int64(1))
	assert.ErrorIs(t, err, prefs.ErrTypeMismatch)

	err = h.SetAny(kTheme, Point{X: 1})
	assert.ErrorIs(t, err, prefs.ErrUnsupportedType)
	assert.NotErrorIs(t, err, prefs.ErrTypeMismatch)

	tomlHandler := newHandler(t, memory.New(), prefs.WithCodec(prefs.TOMLCodec{}))
	list := prefs.MustDescriptor("list", []int{1, 2})
	err = prefs.Set(tomlHandler, list, []int{3})
	assert.ErrorIs(t, err, prefs.ErrUnsupportedType)
	assert.Empty(t, tomlHandler.Snapshot())
}

func TestPermissivePolicy(t *testing.T) {
	h := newHandler(t, memory.New(), prefs.WithPermissive(true))

	require.NoError(t, h.SetAny(kObj, map[string]int{"X": 5, "Y": 6}))
	obj, err := prefs.Get(h, kObj)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 5, Y: 6}, obj)

	// Values are dispatched on their runtime kind.
	require.NoError(t, h.SetAny(kObj, int32(5)))
	assert.Equal(t, settings.Int32(5), h.Snapshot()["obj"])
	_, err = prefs.Get(h, kObj)
	assert.ErrorIs(t, err, prefs.ErrTypeMismatch)
}

func TestPermissiveFallsBackToJSON(t *testing.T) {
	h := newHandler(t, memory.New(), prefs.WithCodec(prefs.TOMLCodec{}), prefs.WithPermissive(true))
	list := prefs.MustDescriptor("list", []int{1, 2})

	require.NoError(t, prefs.Set(h, list, []int{3, 4}))
	assert.Equal(t, settings.String("[3,4]"), h.Snapshot()["list"])

	got, err := prefs.Get(h, list)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, got)
}

func TestRules(t *testing.T) {
	_, err := prefs.NewDescriptor("theme", int32(5), prefs.WithRule("value >= 0 && value <= 2"))
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	_, err = prefs.NewDescriptor("theme", int32(0), prefs.WithRule("value >="))
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	_, err = prefs.NewDescriptor("theme", int32(0), prefs.WithRule("value + 1"))
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	d := prefs.MustDescriptor("theme", int32(0), prefs.WithRule("value >= 0 && value <= 2"))
	assert.Equal(t, "value >= 0 && value <= 2", d.Rule())

	h := newHandler(t, memory.New())
	assert.ErrorIs(t, prefs.Set(h, d, 3), prefs.ErrInvalidArgument)
	require.NoError(t, prefs.Set(h, d, 2))

	obj := prefs.MustDescriptor("obj", Point{X: 1}, prefs.WithRule("value.X > 0"))
	assert.ErrorIs(t, prefs.Set(h, obj, Point{X: -1}), prefs.ErrInvalidArgument)
	require.NoError(t, prefs.Set(h, obj, Point{X: 4}))
}

func TestTwoHandlersStaleUntilRefresh(t *testing.T) {
	backend := memory.New()
	h1 := newHandler(t, backend)
	h2 := newHandler(t, backend)

	v, err := prefs.Get(h2, kTheme)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	require.NoError(t, prefs.Set(h1, kTheme, 2))

	stale, err := h2.Stale()
	require.NoError(t, err)
	assert.True(t, stale)
	v, err = prefs.Get(h2, kTheme)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v, "cache is stale until refresh")

	require.NoError(t, h2.RefreshCache())
	stale, err = h2.Stale()
	require.NoError(t, err)
	assert.False(t, stale)
	v, err = prefs.Get(h2, kTheme)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestWatchRefreshesCache(t *testing.T) {
	backend := memory.New()
	writer := newHandler(t, backend)
	watcher := newHandler(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx) }()

	var next int32
	require.Eventually(t, func() bool {
		next = (next + 1) % 3
		if err := prefs.Set(writer, kTheme, next); err != nil {
			return false
		}
		return watcher.Snapshot()["theme"] == settings.Int32(next)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// plainStore hides the optional capabilities of the wrapped store.
type plainStore struct{ settings.Store }

func TestOptionalCapabilities(t *testing.T) {
	backend := memory.New()
	opener := settings.OpenerFunc(func(name string) (settings.Store, error) {
		s, err := backend.Open(name)
		if err != nil {
			return nil, err
		}
		return plainStore{s}, nil
	})
	h := newHandler(t, opener)

	_, err := h.Stale()
	assert.ErrorIs(t, err, settings.ErrNotSupported)
	assert.ErrorIs(t, h.Watch(context.Background()), settings.ErrNotSupported)
}

func TestOpenError(t *testing.T) {
	_, err := prefs.New(prefs.NewDefinition("bad/name"), memory.New())
	assert.ErrorIs(t, err, settings.ErrInvalidName)

	_, err = prefs.New(nil, memory.New())
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)
}

func TestKeyTable(t *testing.T) {
	theme := prefs.MustDescriptor("THEME", int32(0))
	table := prefs.KeyTable{"THEME": "theme_preference"}
	h, err := prefs.New(prefs.NewDefinition(fileName, theme), memory.New(), prefs.WithResolver(table))
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, prefs.Set(h, theme, 1))
	assert.Equal(t, settings.Int32(1), h.Snapshot()["theme_preference"])

	e, ok := h.Find("theme_preference")
	require.True(t, ok)
	assert.Same(t, prefs.Entry(theme), e)
	_, ok = h.Find("THEME")
	assert.False(t, ok)

	unknown := prefs.MustDescriptor("MISSING", true)
	_, err = prefs.Get(h, unknown)
	assert.ErrorIs(t, err, prefs.ErrUnknownKey)
}

func TestOnChange(t *testing.T) {
	backend := memory.New()
	h := newHandler(t, backend)

	type change struct{ old, new int32 }
	var (
		mu      sync.Mutex
		changes []change
	)
	cancel, err := prefs.OnChange(h, kTheme, func(old, new int32) {
		mu.Lock()
		changes = append(changes, change{old, new})
		mu.Unlock()
	})
	require.NoError(t, err)

	_, err = prefs.Get(h, kTheme) // persists the default
	require.NoError(t, err)
	require.NoError(t, prefs.Set(h, kTheme, 1))
	require.NoError(t, prefs.Set(h, kTheme, 1))
	require.NoError(t, prefs.Set(h, kObj, Point{}))

	putRaw(t, backend, "theme", settings.Int32(2))
	require.NoError(t, h.RefreshCache())
	require.NoError(t, h.Clear(kTheme))

	cancel()
	cancel()
	require.NoError(t, prefs.Set(h, kTheme, 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []change{{0, 1}, {1, 2}, {2, 0}}, changes)
}

func TestParseAndFormatText(t *testing.T) {
	h := newHandler(t, memory.New())

	v, err := h.ParseText(kTheme, "2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	require.NoError(t, h.SetAny(kTheme, v))

	_, err = h.ParseText(kTheme, "dark")
	assert.ErrorIs(t, err, prefs.ErrInvalidArgument)

	named := prefs.MustDescriptor("named", Theme(0))
	v, err = h.ParseText(named, "1")
	require.NoError(t, err)
	assert.Equal(t, Theme(1), v)

	v, err = h.ParseText(kObj, `{"X":7,"Y":8}`)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 7, Y: 8}, v)

	text, err := h.FormatText(kObj, Point{X: 7, Y: 8})
	require.NoError(t, err)
	assert.JSONEq(t, `{"X":7,"Y":8}`, text)

	text, err = h.FormatText(kTheme, int32(-3))
	require.NoError(t, err)
	assert.Equal(t, "-3", text)

	_, err = h.FormatText(kTheme, "x")
	assert.ErrorIs(t, err, prefs.ErrTypeMismatch)
}

func TestDescriptorRegistry(t *testing.T) {
	h := newHandler(t, memory.New())
	assert.Equal(t, fileName, h.SettingsFileName())
	assert.Len(t, h.Descriptors(), 2)

	e, ok := h.Find("obj")
	require.True(t, ok)
	assert.Equal(t, prefs.KindComplex, e.Kind())

	_, ok = h.Find("nope")
	assert.False(t, ok)
}

func TestHas(t *testing.T) {
	h := newHandler(t, memory.New())

	ok, err := h.Has(kTheme)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = prefs.Get(h, kTheme)
	require.NoError(t, err)
	ok, err = h.Has(kTheme)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveListeners(t *testing.T) {
	h := newHandler(t, memory.New())

	var themeCalls, objCalls int
	_, err := prefs.OnChange(h, kTheme, func(int32, int32) { themeCalls++ })
	require.NoError(t, err)
	_, err = prefs.OnChange(h, kTheme, func(int32, int32) { themeCalls++ })
	require.NoError(t, err)
	_, err = prefs.OnChange(h, kObj, func(Point, Point) { objCalls++ })
	require.NoError(t, err)

	require.NoError(t, h.RemoveListeners(kTheme))
	require.NoError(t, prefs.Set(h, kTheme, 1))
	require.NoError(t, prefs.Set(h, kObj, Point{X: 5}))
	assert.Zero(t, themeCalls)
	assert.Equal(t, 1, objCalls)

	h.RemoveAllListeners()
	require.NoError(t, prefs.Set(h, kObj, Point{X: 6}))
	assert.Equal(t, 1, objCalls)
}

func TestRuleOnNamedType(t *testing.T) {
	d := prefs.MustDescriptor("theme", Theme(0), prefs.WithRule("value >= 0 && value <= 2"))
	h := newHandler(t, memory.New())

	require.NoError(t, prefs.Set(h, d, 2))
	assert.ErrorIs(t, prefs.Set(h, d, 7), prefs.ErrInvalidArgument)
}

// pausingStore blocks the first All call made after pause is set until
// release is closed. The snapshot is taken before blocking.
type pausingStore struct {
	settings.Store
	pause   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (s *pausingStore) All() (map[string]settings.Value, error) {
	all, err := s.Store.All()
	if s.pause.CompareAndSwap(true, false) {
		close(s.reached)
		<-s.release
	}
	return all, err
}

func TestOverlappingRefreshKeepsNewestSnapshot(t *testing.T) {
	backend := memory.New()
	ps := &pausingStore{reached: make(chan struct{}), release: make(chan struct{})}
	opener := settings.OpenerFunc(func(name string) (settings.Store, error) {
		s, err := backend.Open(name)
		if err != nil {
			return nil, err
		}
		ps.Store = s
		return ps, nil
	})
	h := newHandler(t, opener)

	_, err := prefs.Get(h, kTheme)
	require.NoError(t, err)

	ps.pause.Store(true)
	refreshed := make(chan error, 1)
	go func() { refreshed <- h.RefreshCache() }()
	<-ps.reached

	stored := make(chan error, 1)
	go func() { stored <- prefs.Set(h, kTheme, 2) }()

	other, err := backend.Open(fileName)
	require.NoError(t, err)
	defer other.Close()
	require.Eventually(t, func() bool {
		all, err := other.All()
		return err == nil && all["theme"] == settings.Int32(2)
	}, 5*time.Second, 10*time.Millisecond)

	close(ps.release)
	require.NoError(t, <-refreshed)
	require.NoError(t, <-stored)

	v, err := prefs.Get(h, kTheme)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	all, err := other.All()
	require.NoError(t, err)
	assert.Equal(t, settings.Int32(2), all["theme"])
}

func TestDefaultIsNeverShared(t *testing.T) {
	list := prefs.MustDescriptor("list", []int{1, 2, 3})
	h := newHandler(t, memory.New())

	v, err := prefs.Get(h, list)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, v)
	v[0] = 99
	assert.Equal(t, []int{1, 2, 3}, list.DefaultValue())

	v, err = prefs.Get(h, list)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)

	// A missing entry reaches listeners as a copy of the default.
	require.NoError(t, h.Clear(list))
	var seen []int
	cancel, err := prefs.OnChange(h, list, func(old, new []int) {
		seen = old
		old[0] = 42
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, prefs.Set(h, list, []int{7}))
	assert.Equal(t, []int{42, 2, 3}, seen)
	assert.Equal(t, []int{1, 2, 3}, list.DefaultValue())
}
