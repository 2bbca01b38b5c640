package order

import (
	"context"
	"sort"
	"time"

	"storefront/internal/domain"
	"storefront/internal/filestore"
)

type fileRepo struct {
	orders *filestore.Collection[orderDocument]
}

// NewFile stores orders in dir/orders.json.
func NewFile(dir string) (Repository, error) {
	c, err := filestore.Open[orderDocument](dir, "orders")
	if err != nil {
		return nil, err
	}
	return &fileRepo{orders: c}, nil
}

func (r *fileRepo) Create(_ context.Context, o domain.Order) error {
	return r.orders.Update(func(docs []orderDocument) ([]orderDocument, error) {
		for _, d := range docs {
			if d.ID == o.ID {
				return nil, domain.ErrAlreadyExists
			}
		}
		return append(docs, toDocument(o)), nil
	})
}

func (r *fileRepo) Get(_ context.Context, id string) (domain.Order, error) {
	docs, err := r.orders.Load()
	if err != nil {
		return domain.Order{}, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d.toDomain()
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (r *fileRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return r.filter(func(d orderDocument) bool { return d.UserID == userID })
}

func (r *fileRepo) List(_ context.Context, f Filter) ([]domain.Order, error) {
	return r.filter(func(d orderDocument) bool { return f.Status == "" || d.Status == string(f.Status) })
}

func (r *fileRepo) filter(keep func(orderDocument) bool) ([]domain.Order, error) {
	docs, err := r.orders.Load()
	if err != nil {
		return nil, err
	}
	matched := docs[:0]
	for _, d := range docs {
		if keep(d) {
			matched = append(matched, d)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return decodeAll(matched)
}

func (r *fileRepo) SetStatus(_ context.Context, id string, from, to domain.OrderStatus, at time.Time) (domain.Order, error) {
	var updated orderDocument
	err := r.orders.Update(func(docs []orderDocument) ([]orderDocument, error) {
		for i := range docs {
			if docs[i].ID != id {
				continue
			}
			if docs[i].Status != string(from) {
				return nil, domain.ErrStateConflict
			}
			docs[i].Status = string(to)
			docs[i].UpdatedAt = at.UTC()
			updated = docs[i]
			return docs, nil
		}
		return nil, domain.ErrNotFound
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated.toDomain()
}

func (r *fileRepo) Delete(_ context.Context, id string) error {
	return r.orders.Update(func(docs []orderDocument) ([]orderDocument, error) {
		for i := range docs {
			if docs[i].ID == id {
				return append(docs[:i], docs[i+1:]...), nil
			}
		}
		return nil, domain.ErrNotFound
	})
}
