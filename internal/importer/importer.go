package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"storefront/internal/domain"
	productsvc "storefront/internal/service/product"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, category domain.Category) (domain.Category, error)
}

// CSVImporter reads catalog CSV files and inserts or updates products by
// slug. Rows without a slug continue the previous product and may add sizes,
// colors or an image.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
	logger     zerolog.Logger
}

// Report summarizes one import run.
type Report struct {
	Imported   int
	Categories int
	Skipped    int
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter, logger zerolog.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:     csvr,
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

type csvRow struct {
	line  int
	input productsvc.Input
}

// Run parses every row and upserts the products it describes. Invalid
// products are skipped and reported together in the returned error; storage
// failures stop the run.
func (i *CSVImporter) Run(ctx context.Context) (Report, error) {
	var report Report
	headers, err := i.reader.Read()
	if err != nil {
		return report, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["name"]; !ok {
		return report, errors.New("missing required column \"name\"")
	}

	var (
		current *csvRow
		invalid error
		seen    = map[string]bool{}
		line    = 1
	)

	flush := func() error {
		if current == nil {
			return nil
		}
		row := current
		current = nil
		if err := row.input.Validate(); err != nil {
			report.Skipped++
			invalid = multierr.Append(invalid, fmt.Errorf("line %d: %w", row.line, err))
			return nil
		}
		if err := i.ensureCategory(ctx, row.input.Category, seen, &report); err != nil {
			return err
		}
		saved, err := i.products.Upsert(ctx, row.input.Product())
		if err != nil {
			return fmt.Errorf("upsert product on line %d: %w", row.line, err)
		}
		report.Imported++
		i.logger.Debug().Str("product_id", saved.ID).Str("slug", saved.Slug).Msg("product imported")
		return nil
	}

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return report, fmt.Errorf("read row %d: %w", line, err)
		}

		name := pick(record, index, "name")
		if name != "" {
			if err := flush(); err != nil {
				return report, err
			}
			in, perr := parseRow(record, index)
			if perr != nil {
				report.Skipped++
				invalid = multierr.Append(invalid, fmt.Errorf("line %d: %w", line, perr))
				continue
			}
			current = &csvRow{line: line, input: in}
			continue
		}

		// Continuation rows belong to the current product.
		if current != nil {
			current.input.Sizes = append(current.input.Sizes, splitList(pick(record, index, "sizes"))...)
			current.input.Colors = append(current.input.Colors, parseColors(pick(record, index, "colors"))...)
			if img := pick(record, index, "image"); img != "" && current.input.Image == "" {
				current.input.Image = img
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}
	return report, invalid
}

func (i *CSVImporter) ensureCategory(ctx context.Context, key string, seen map[string]bool, report *Report) error {
	key = strings.TrimSpace(key)
	if key == "" || i.categories == nil || seen[key] {
		return nil
	}
	if _, err := i.categories.Upsert(ctx, domain.Category{Key: key, Name: titleCase(key), Slug: productsvc.Slugify(key)}); err != nil {
		return fmt.Errorf("upsert category %q: %w", key, err)
	}
	seen[key] = true
	report.Categories++
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (productsvc.Input, error) {
	in := productsvc.Input{
		Slug:        pick(record, index, "slug"),
		Name:        pick(record, index, "name"),
		Description: pick(record, index, "description"),
		Category:    pick(record, index, "category"),
		Status:      pick(record, index, "status"),
		Image:       pick(record, index, "image"),
		Sizes:       splitList(pick(record, index, "sizes")),
		Colors:      parseColors(pick(record, index, "colors")),
	}

	var err error
	if in.Price, err = decimal.NewFromString(pick(record, index, "price")); err != nil {
		return in, fmt.Errorf("price: %w", err)
	}
	if raw := pick(record, index, "original_price"); raw != "" {
		op, err := decimal.NewFromString(raw)
		if err != nil {
			return in, fmt.Errorf("original_price: %w", err)
		}
		in.OriginalPrice = &op
	}
	if in.Stock, err = atoiOrZero(pick(record, index, "stock")); err != nil {
		return in, fmt.Errorf("stock: %w", err)
	}
	if in.Reviews, err = atoiOrZero(pick(record, index, "reviews")); err != nil {
		return in, fmt.Errorf("reviews: %w", err)
	}
	if raw := pick(record, index, "rating"); raw != "" {
		if in.Rating, err = strconv.ParseFloat(raw, 64); err != nil {
			return in, fmt.Errorf("rating: %w", err)
		}
	}
	return in, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseColors reads "Red:#ff0000;Navy" into colors.
func parseColors(s string) []domain.Color {
	var out []domain.Color
	for _, part := range splitList(s) {
		name, code, found := strings.Cut(part, ":")
		if !found {
			if c := domain.ParseColor(part); c != nil {
				out = append(out, *c)
			}
			continue
		}
		out = append(out, domain.Color{Name: strings.TrimSpace(name), Code: strings.ToLower(strings.TrimSpace(code))})
	}
	return out
}

func titleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
