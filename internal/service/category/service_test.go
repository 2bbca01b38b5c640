package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type memoryRepo struct {
	items []domain.Category
}

func (m *memoryRepo) List(context.Context) ([]domain.Category, error) {
	return m.items, nil
}

func (m *memoryRepo) Upsert(_ context.Context, c domain.Category) (domain.Category, error) {
	for i := range m.items {
		if m.items[i].Key == c.Key {
			m.items[i].Name = c.Name
			return m.items[i], nil
		}
	}
	c.ID = c.Key + "-id"
	m.items = append(m.items, c)
	return c, nil
}

func TestUpsert_DefaultsSlugAndValidates(t *testing.T) {
	svc := New(&memoryRepo{})

	c, err := svc.Upsert(context.Background(), domain.Category{Key: "Sarees", Name: " Sarees "})
	require.NoError(t, err)
	assert.Equal(t, "sarees", c.Slug)
	assert.Equal(t, "Sarees", c.Name)

	_, err = svc.Upsert(context.Background(), domain.Category{})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"key", "name"}, ve.FieldNames())

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
