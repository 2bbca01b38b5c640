package product

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
	"storefront/internal/validation"
)

// Input is the admin payload for creating or replacing a product.
type Input struct {
	Slug          string           `json:"slug" validate:"omitempty,max=120"`
	Name          string           `json:"name" validate:"required,max=200"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Stock         int              `json:"stock" validate:"gte=0"`
	Category      string           `json:"category"`
	Status        string           `json:"status" validate:"omitempty,oneof=active inactive"`
	Sizes         []string         `json:"sizes" validate:"dive,required"`
	Colors        []domain.Color   `json:"colors"`
	Image         string           `json:"image"`
	Rating        float64          `json:"rating" validate:"gte=0,lte=5"`
	Reviews       int              `json:"reviews" validate:"gte=0"`
}

// Validate reports every problem with in.
func (in Input) Validate() error {
	verr := &domain.ValidationError{}
	if err := validation.Struct(in); err != nil {
		if ve, ok := domain.AsValidation(err); ok {
			verr.Fields = append(verr.Fields, ve.Fields...)
		}
	}
	if in.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	if in.OriginalPrice != nil && in.OriginalPrice.IsNegative() {
		verr.Add("originalPrice", "must not be negative")
	}
	for _, c := range in.Colors {
		if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Code) == "" {
			verr.Add("colors", "every color needs a name or a code")
			break
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Product normalizes in into a domain product without an id.
func (in Input) Product() domain.Product {
	status := domain.ProductStatus(in.Status)
	if status == "" {
		status = domain.ProductActive
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	return domain.Product{
		Slug:          slug,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Stock:         in.Stock,
		Category:      strings.TrimSpace(in.Category),
		Status:        status,
		Sizes:         in.Sizes,
		Colors:        in.Colors,
		Image:         strings.TrimSpace(in.Image),
		Rating:        in.Rating,
		Reviews:       in.Reviews,
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and joins its words with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

type Service struct {
	repo     productrepo.Repository
	notifier broadcast.Publisher
	logger   zerolog.Logger
}

func New(repo productrepo.Repository, notifier broadcast.Publisher, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = broadcast.Nop{}
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// ListProducts serves the catalog.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	products, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}
	p, err := s.repo.Create(ctx, in.Product())
	if err != nil {
		return domain.Product{}, err
	}
	s.announce(ctx, p.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}
	next := in.Product()
	next.ID = id
	p, err := s.repo.Update(ctx, next)
	if err != nil {
		return domain.Product{}, err
	}
	s.announce(ctx, p.ID)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.announce(ctx, id)
	return nil
}

func (s *Service) announce(ctx context.Context, productID string) {
	n := broadcast.Notification{Topic: broadcast.TopicProducts, Scope: productID, At: time.Now()}
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("catalog change not announced")
	}
}
