package artifacts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

type countingSource struct {
	calls   atomic.Int32
	delay   time.Duration
	catalog *domain.Catalog
	err     error
}

func (s *countingSource) LoadCatalog(ctx context.Context) (*domain.Catalog, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.catalog, s.err
}

func loadedSectorCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	catalog, err := NewSource(sectorBlobs(t), "", "").LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	return catalog
}

func TestOnceProviderLoadsOnceForConcurrentCallers(t *testing.T) {
	source := &countingSource{delay: 20 * time.Millisecond, catalog: loadedSectorCatalog(t)}
	var hooked atomic.Int32
	provider := NewOnceProvider(source, WithLoadHook(func(*domain.Catalog) { hooked.Add(1) }))

	var wg sync.WaitGroup
	results := make([]*domain.Catalog, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			catalog, err := provider.Catalog(context.Background())
			if err != nil {
				t.Errorf("Catalog() error = %v", err)
				return
			}
			results[i] = catalog
		}(i)
	}
	wg.Wait()

	if got := source.calls.Load(); got != 1 {
		t.Fatalf("expected a single load, got %d", got)
	}
	if hooked.Load() != 1 {
		t.Fatalf("expected load hook to run once, got %d", hooked.Load())
	}
	for i, c := range results {
		if c != results[0] {
			t.Fatalf("caller %d received a different handle", i)
		}
	}
	if !provider.Ready() {
		t.Fatalf("provider must report ready after load")
	}
}

func TestOnceProviderRemembersLoadFailure(t *testing.T) {
	loadErr := domain.WrapError(domain.ErrConfiguration, "load", errors.New("bad shape"))
	source := &countingSource{err: loadErr}
	provider := NewOnceProvider(source)

	for i := 0; i < 3; i++ {
		if _, err := provider.Catalog(context.Background()); !errors.Is(err, loadErr) {
			t.Fatalf("expected load error, got %v", err)
		}
	}
	if source.calls.Load() != 1 {
		t.Fatalf("failed load must not be retried, got %d calls", source.calls.Load())
	}
	if provider.Ready() {
		t.Fatalf("provider must not be ready after a failed load")
	}
}

func TestOnceProviderRetriesAfterCancelledLoad(t *testing.T) {
	source := &countingSource{delay: 50 * time.Millisecond, catalog: loadedSectorCatalog(t)}
	provider := NewOnceProvider(source)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := provider.Warm(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if err := provider.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if source.calls.Load() != 2 {
		t.Fatalf("expected a second load after cancellation, got %d", source.calls.Load())
	}
}
