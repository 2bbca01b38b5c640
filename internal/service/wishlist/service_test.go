package wishlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	wishlistrepo "storefront/internal/repository/wishlist"
)

// flakyRepo is an in-memory repository whose Remove fails for chosen products.
type flakyRepo struct {
	mu      sync.Mutex
	entries []domain.WishlistEntry
	failOn  map[string]bool
}

func (r *flakyRepo) Add(_ context.Context, e domain.WishlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.entries {
		if x.UserID == e.UserID && x.ProductID == e.ProductID {
			return domain.ErrAlreadyExists
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *flakyRepo) Remove(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[productID] {
		return errors.New("backend unavailable")
	}
	for i, x := range r.entries {
		if x.UserID == userID && x.ProductID == productID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *flakyRepo) List(_ context.Context, userID string) ([]domain.WishlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WishlistEntry
	for _, x := range r.entries {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	return out, nil
}

type bulkRepo struct {
	flakyRepo
	bulkCalls int
}

func (r *bulkRepo) RemoveAll(_ context.Context, userID string) (int, error) {
	r.bulkCalls++
	n := 0
	kept := r.entries[:0]
	for _, x := range r.entries {
		if x.UserID == userID {
			n++
			continue
		}
		kept = append(kept, x)
	}
	r.entries = kept
	return n, nil
}

type catalogStub map[string]bool

func (c catalogStub) Get(_ context.Context, id string) (domain.Product, error) {
	if !c[id] {
		return domain.Product{}, domain.ErrNotFound
	}
	return domain.Product{ID: id}, nil
}

type clearCounts struct{ removed, failed int }

func (c *clearCounts) AddWishlistClear(removed, failed int) {
	c.removed += removed
	c.failed += failed
}

var products = catalogStub{"p1": true, "p2": true, "p3": true}

func TestAdd_DuplicateIsConflict(t *testing.T) {
	svc := New(&flakyRepo{}, products, nil, zerolog.Nop(), nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "p1")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u1", "p1")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAdd_UnknownProductAndEmptyID(t *testing.T) {
	svc := New(&flakyRepo{}, products, nil, zerolog.Nop(), nil)

	_, err := svc.Add(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Add(context.Background(), "u1", "  ")
	_, ok := domain.AsValidation(err)
	assert.True(t, ok)
}

func TestRemove_MissingIsNotFound(t *testing.T) {
	svc := New(&flakyRepo{}, products, nil, zerolog.Nop(), nil)

	assert.ErrorIs(t, svc.Remove(context.Background(), "u1", "p1"), domain.ErrNotFound)
}

func TestMutations_Announce(t *testing.T) {
	bus := broadcast.NewLocalBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, broadcast.TopicWishlist)
	require.NoError(t, err)
	svc := New(&flakyRepo{}, products, bus, zerolog.Nop(), nil)

	_, err = svc.Add(ctx, "u1", "p1")
	require.NoError(t, err)

	n := <-events
	assert.Equal(t, "u1", n.Scope)
}

func TestClear_LoopToleratesPartialFailure(t *testing.T) {
	repo := &flakyRepo{failOn: map[string]bool{"p2": true}}
	counts := &clearCounts{}
	svc := New(repo, products, nil, zerolog.Nop(), counts)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := svc.Add(ctx, "u1", id)
		require.NoError(t, err)
	}

	result, err := svc.Clear(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Removed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "p2", result.Failed[0].ProductID)
	assert.Equal(t, clearCounts{removed: 2, failed: 1}, *counts)

	left, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "p2", left[0].ProductID)
}

func TestClear_UsesBulkRemoveWhenAvailable(t *testing.T) {
	repo := &bulkRepo{}
	svc := New(repo, products, nil, zerolog.Nop(), nil)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2"} {
		_, err := svc.Add(ctx, "u1", id)
		require.NoError(t, err)
	}
	_, err := svc.Add(ctx, "u2", "p1")
	require.NoError(t, err)

	result, err := svc.Clear(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.bulkCalls)
	assert.Equal(t, 2, result.Removed)
	assert.Empty(t, result.Failed)
	others, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestClear_FileBackendLoops(t *testing.T) {
	repo, err := wishlistrepo.NewFile(t.TempDir())
	require.NoError(t, err)
	svc := New(repo, products, nil, zerolog.Nop(), nil)
	ctx := context.Background()
	_, err = svc.Add(ctx, "u1", "p1")
	require.NoError(t, err)

	result, err := svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
}
