package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justdice/usagestats/internal/usage"
)

type fakeRegistry struct {
	apps  map[string]usage.ApplicationInfo
	err   error
	calls atomic.Int32
}

func (f *fakeRegistry) ApplicationInfo(_ context.Context, pkg string) (usage.ApplicationInfo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return usage.ApplicationInfo{}, f.err
	}
	info, ok := f.apps[pkg]
	if !ok {
		return usage.ApplicationInfo{}, fmt.Errorf("lookup %s: %w", pkg, usage.ErrNotFound)
	}
	return info, nil
}

func newFake() *fakeRegistry {
	return &fakeRegistry{apps: map[string]usage.ApplicationInfo{
		"com.example.maps": {PackageName: "com.example.maps", Label: "Maps", UID: 10123},
		"android.settings": {PackageName: "android.settings", Label: "Settings", UID: 1000, Flags: usage.FlagSystem | 1<<3},
		"com.example.blank": {PackageName: "com.example.blank", UID: 10200},
	}}
}

func TestResolve_Found(t *testing.T) {
	r := New(newFake(), slogtest.Make(t, nil))
	meta := r.Resolve(context.Background(), "com.example.maps")

	assert.Equal(t, usage.AppMetadata{
		PackageName: "com.example.maps",
		DisplayName: "Maps",
		IsSystemApp: false,
	}, meta)
}

func TestResolve_SystemBit(t *testing.T) {
	r := New(newFake(), slogtest.Make(t, nil))
	meta := r.Resolve(context.Background(), "android.settings")
	assert.True(t, meta.IsSystemApp)
}

func TestResolve_NotFoundFallsBackToPackageName(t *testing.T) {
	r := New(newFake(), slogtest.Make(t, nil))
	meta := r.Resolve(context.Background(), "com.gone")

	assert.Equal(t, "com.gone", meta.DisplayName)
	assert.False(t, meta.IsSystemApp)
	assert.False(t, r.Exists(context.Background(), "com.gone"))
}

func TestResolve_EmptyLabelFallsBackToPackageName(t *testing.T) {
	r := New(newFake(), slogtest.Make(t, nil))
	assert.Equal(t, "com.example.blank", r.Resolve(context.Background(), "com.example.blank").DisplayName)
}

func TestResolve_IsCachedAndIdempotent(t *testing.T) {
	src := newFake()
	r := New(src, slogtest.Make(t, nil))
	ctx := context.Background()

	first := r.Resolve(ctx, "com.example.maps")
	second := r.Resolve(ctx, "com.example.maps")
	missing1 := r.Resolve(ctx, "com.gone")
	missing2 := r.Resolve(ctx, "com.gone")

	assert.Equal(t, first, second)
	assert.Equal(t, missing1, missing2)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, 2, r.Len())
}

func TestResolve_TransientErrorIsNotCached(t *testing.T) {
	src := newFake()
	src.err = errors.New("binder died")
	r := New(src, slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}))
	ctx := context.Background()

	meta := r.Resolve(ctx, "com.example.maps")
	assert.Equal(t, "com.example.maps", meta.DisplayName)
	assert.Equal(t, 0, r.Len())

	src.err = nil
	assert.Equal(t, "Maps", r.Resolve(ctx, "com.example.maps").DisplayName)
}

func TestUID(t *testing.T) {
	r := New(newFake(), slogtest.Make(t, nil))
	ctx := context.Background()

	uid, ok := r.UID(ctx, "com.example.maps")
	require.True(t, ok)
	assert.Equal(t, 10123, uid)

	uid, ok = r.UID(ctx, "com.gone")
	assert.False(t, ok)
	assert.Equal(t, 0, uid)
}

func TestWithLabels(t *testing.T) {
	r := New(newFake(), slogtest.Make(t, nil), WithLabels(map[string]string{
		"com.example.maps": "Google Maps",
		"com.gone":         "Old App",
	}))
	ctx := context.Background()

	assert.Equal(t, "Google Maps", r.Resolve(ctx, "com.example.maps").DisplayName)
	assert.Equal(t, "Old App", r.Resolve(ctx, "com.gone").DisplayName)
}

func TestResolve_NilSource(t *testing.T) {
	r := New(nil, slogtest.Make(t, nil))
	meta := r.Resolve(context.Background(), "com.any")
	assert.Equal(t, "com.any", meta.DisplayName)
}

func TestResolve_ConcurrentLookups(t *testing.T) {
	src := newFake()
	r := New(src, slogtest.Make(t, nil))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Maps", r.Resolve(ctx, "com.example.maps").DisplayName)
		}()
	}
	wg.Wait()

	// singleflight collapses in-flight misses; later callers hit the cache.
	assert.LessOrEqual(t, src.calls.Load(), int32(32))
	assert.Equal(t, 1, r.Len())
}
