package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	config "github.com/hanpama/graphhost/internal/config"
	eventbus "github.com/hanpama/graphhost/internal/eventbus"
	graphql "github.com/hanpama/graphhost/internal/graphql"
	options "github.com/hanpama/graphhost/internal/options"
	schema "github.com/hanpama/graphhost/internal/schema"
)

const testSDL = `type Query { hello: String }`

func sdlOptions(extra ...config.Action) *options.FactoryOptions {
	return &options.FactoryOptions{
		SchemaActions: []schema.Action{{
			Apply: func(b *schema.Builder) { b.AddSource("test.graphql", testSDL) },
		}},
		ConfigActions: extra,
	}
}

func useBus(t *testing.T) {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
}

func TestGetOrCreate_ReferenceStableUntilEviction(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions())
	r := New(src)
	defer r.Close()

	first, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.GetOrCreate(context.Background(), "api")
		require.NoError(t, err)
		require.Same(t, first, again)
	}
}

func TestGetOrCreate_EmptyNameUsesDefault(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set(options.DefaultName, sdlOptions())
	r := New(src)
	defer r.Close()

	unnamed, err := r.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	named, err := r.GetOrCreate(context.Background(), options.DefaultName)
	require.NoError(t, err)
	require.Same(t, unnamed, named)
}

func TestGetOrCreate_ConcurrentCallersShareOneBuild(t *testing.T) {
	useBus(t)

	var builds atomic.Int32
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions(config.Action{
		ApplyAsync: func(ctx context.Context, c *config.RequestConfig) error {
			builds.Add(1)
			time.Sleep(5 * time.Millisecond)
			return nil
		},
	}))
	r := New(src)
	defer r.Close()

	var created atomic.Int32
	eventbus.Subscribe(func(ctx context.Context, e ExecutorCreated) { created.Add(1) })

	const callers = 20
	results := make([]*Executor, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.GetOrCreate(context.Background(), "api")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}

	require.EqualValues(t, 1, builds.Load(), "exactly one build must run")
	require.EqualValues(t, 1, created.Load(), "exactly one created event must fire")
	for i := 1; i < callers; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestBuilds_GloballySerializedAcrossNames(t *testing.T) {
	useBus(t)

	var inFlight, overlaps atomic.Int32
	src := options.NewInMemorySource()
	for i := 0; i < 5; i++ {
		src.Set(fmt.Sprintf("svc%d", i), sdlOptions(config.Action{
			ApplyAsync: func(ctx context.Context, c *config.RequestConfig) error {
				if inFlight.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			},
		}))
	}
	r := New(src)
	defer r.Close()

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := r.GetOrCreate(context.Background(), fmt.Sprintf("svc%d", i)); err != nil {
					failures.Add(1)
				}
			}(i)
		}
	}
	wg.Wait()

	require.EqualValues(t, 0, failures.Load())

	require.EqualValues(t, 0, overlaps.Load(), "no two builds may run concurrently")
}

func TestEvict_RebuildYieldsNewExecutor(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions())
	r := New(src)
	defer r.Close()

	var evicted []string
	eventbus.Subscribe(func(ctx context.Context, e ExecutorEvicted) { evicted = append(evicted, e.Name) })

	first, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)

	require.True(t, r.Evict("api"))
	require.Equal(t, []string{"api"}, evicted)

	second, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)
	require.NotSame(t, first, second)
}

func TestOnConfigurationChanged_NoEntryIsNoOp(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	r := New(src)
	defer r.Close()

	var events int
	eventbus.Subscribe(func(ctx context.Context, e ExecutorEvicted) { events++ })

	r.OnConfigurationChanged("ghost")
	require.False(t, r.Evict("ghost"))
	require.Zero(t, events)
}

func TestSourceChangeEvictsExecutor(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions())
	r := New(src)
	defer r.Close()

	first, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)

	// registry subscribed to the source at construction
	src.Set("api", sdlOptions())

	second, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)
	require.NotSame(t, first, second)
}

func TestFailedBuildIsNotCachedAndRetries(t *testing.T) {
	useBus(t)

	boom := errors.New("boom")
	var attempts atomic.Int32
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions(config.Action{
		ApplyAsync: func(ctx context.Context, c *config.RequestConfig) error {
			if attempts.Add(1) == 1 {
				return boom
			}
			return nil
		},
	}))
	r := New(src)
	defer r.Close()

	var created int
	eventbus.Subscribe(func(ctx context.Context, e ExecutorCreated) { created++ })

	_, err := r.GetOrCreate(context.Background(), "api")
	require.ErrorIs(t, err, boom)
	require.Zero(t, created, "no event for a failed build")
	require.False(t, r.Evict("api"), "nothing may be cached after a failed build")

	exec, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)
	require.NotNil(t, exec)
	require.Equal(t, 1, created)
}

func TestNameMismatchIsNeverCached(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set("api", &options.FactoryOptions{Schema: &schema.Schema{Name: "other"}})
	r := New(src)
	defer r.Close()

	_, err := r.GetOrCreate(context.Background(), "api")
	var mismatch *schema.NameMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.False(t, r.Evict("api"))
}

func TestCancellationMidBuildLeavesCacheClean(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions(config.Action{
		ApplyAsync: func(ctx context.Context, c *config.RequestConfig) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(20 * time.Millisecond):
				return nil
			}
		},
	}))
	r := New(src)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.GetOrCreate(ctx, "api")
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, r.Evict("api"))

	exec, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)
	require.NotNil(t, exec)
}

func TestClosedRegistryFailsFast(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	src.Set("api", sdlOptions())
	r := New(src)

	_, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.GetOrCreate(context.Background(), "api")
	require.ErrorIs(t, err, ErrDisposed)
	require.False(t, r.Evict("api"))
}

type stubEngine struct{ data any }

func (s stubEngine) ExecuteOperation(ctx context.Context, p graphql.ExecutionParams) (*graphql.Response, error) {
	return &graphql.Response{Data: s.data}, nil
}

func TestExecutor_ExecuteThroughDefaultPipeline(t *testing.T) {
	useBus(t)
	src := options.NewInMemorySource()
	opts := sdlOptions(config.Action{
		Apply: func(c *config.RequestConfig) { c.Engine = stubEngine{data: map[string]any{"hello": "world"}} },
	})
	src.Set("api", opts)
	r := New(src)
	defer r.Close()

	exec, err := r.GetOrCreate(context.Background(), "api")
	require.NoError(t, err)

	res := exec.Execute(context.Background(), &graphql.Request{Query: `{ hello }`})
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"hello": "world"}, res.Data)
}
