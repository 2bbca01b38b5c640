package wishlist

import (
	"context"
	"sort"

	"storefront/internal/domain"
	"storefront/internal/filestore"
)

type fileRepo struct {
	entries *filestore.Collection[domain.WishlistEntry]
}

// NewFile stores entries in dir/wishlist.json. It has no bulk delete.
func NewFile(dir string) (Repository, error) {
	c, err := filestore.Open[domain.WishlistEntry](dir, "wishlist")
	if err != nil {
		return nil, err
	}
	return &fileRepo{entries: c}, nil
}

func (r *fileRepo) Add(_ context.Context, e domain.WishlistEntry) error {
	return r.entries.Update(func(all []domain.WishlistEntry) ([]domain.WishlistEntry, error) {
		for _, x := range all {
			if x.UserID == e.UserID && x.ProductID == e.ProductID {
				return nil, domain.ErrAlreadyExists
			}
		}
		return append(all, e), nil
	})
}

func (r *fileRepo) Remove(_ context.Context, userID, productID string) error {
	return r.entries.Update(func(all []domain.WishlistEntry) ([]domain.WishlistEntry, error) {
		for i, x := range all {
			if x.UserID == userID && x.ProductID == productID {
				return append(all[:i], all[i+1:]...), nil
			}
		}
		return nil, domain.ErrNotFound
	})
}

func (r *fileRepo) List(_ context.Context, userID string) ([]domain.WishlistEntry, error) {
	all, err := r.entries.Load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.WishlistEntry, 0)
	for _, x := range all {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}
