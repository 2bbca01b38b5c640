package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

type stubCategoryRepo struct {
	items []domain.Category
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	p.ID = "id-" + p.Slug
	s.items = append(s.items, p)
	return p, nil
}

func (s *stubCategoryRepo) Upsert(_ context.Context, c domain.Category) (domain.Category, error) {
	s.items = append(s.items, c)
	return c, nil
}

const catalogCSV = `slug,name,description,price,original_price,stock,category,status,sizes,colors,image,rating,reviews
,Silk Kurta,Hand woven,1299,1599,10,ethnic-wear,active,S;M;L,Red:#FF0000;Blue:#0000ff,https://img/kurta.jpg,4.5,12
,,,,,,,,XL,Green,,,
cotton-scarf,Cotton Scarf,,249,,5,accessories,,,,,,
`

func TestCSVImporter_Run(t *testing.T) {
	repo := &stubProductRepo{}
	cats := &stubCategoryRepo{}
	imp := NewCSVImporter(strings.NewReader(catalogCSV), repo, cats, zerolog.Nop())

	report, err := imp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Imported: 2, Categories: 2}, report)
	require.Len(t, repo.items, 2)

	kurta := repo.items[0]
	assert.Equal(t, "silk-kurta", kurta.Slug)
	assert.Equal(t, "1299", kurta.Price.String())
	require.NotNil(t, kurta.OriginalPrice)
	assert.Equal(t, "1599", kurta.OriginalPrice.String())
	assert.Equal(t, []string{"S", "M", "L", "XL"}, kurta.Sizes)
	assert.Equal(t, []domain.Color{
		{Name: "Red", Code: "#ff0000"},
		{Name: "Blue", Code: "#0000ff"},
		{Name: "Green"},
	}, kurta.Colors)
	assert.Equal(t, domain.ProductActive, kurta.Status)
	assert.InDelta(t, 4.5, kurta.Rating, 0.001)
	assert.Equal(t, 12, kurta.Reviews)

	assert.Equal(t, "cotton-scarf", repo.items[1].Slug)
	assert.Equal(t, domain.ProductActive, repo.items[1].Status)

	require.Len(t, cats.items, 2)
	assert.Equal(t, "Ethnic Wear", cats.items[0].Name)
	assert.Equal(t, "ethnic-wear", cats.items[0].Slug)
}

func TestCSVImporter_SkipsInvalidRowsAndReportsThem(t *testing.T) {
	data := `name,price,status
Good,100,active
Bad Price,abc,
Negative,-5,
Weird,10,archived
`
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(data), repo, nil, zerolog.Nop())

	report, err := imp.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 3, report.Skipped)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "line 4")
	assert.Contains(t, err.Error(), "line 5")
	require.Len(t, repo.items, 1)
}

func TestCSVImporter_StorageFailureStops(t *testing.T) {
	repo := &stubProductRepo{err: errors.New("db down")}
	imp := NewCSVImporter(strings.NewReader(catalogCSV), repo, nil, zerolog.Nop())

	report, err := imp.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Zero(t, report.Imported)
}

func TestCSVImporter_RequiresNameColumn(t *testing.T) {
	imp := NewCSVImporter(strings.NewReader("slug,price\nx,1\n"), &stubProductRepo{}, nil, zerolog.Nop())

	_, err := imp.Run(context.Background())
	require.Error(t, err)
}
