package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"storefront-search/internal/models"
	"storefront-search/pkg/transport"
	"storefront-search/pkg/utils"
)

// URLPoster posts to a full URL. *transport.Client satisfies it.
type URLPoster interface {
	PostURL(ctx context.Context, url string, body any, opts transport.Options) (any, error)
}

// ProductCache stores detail records by SKU. GetProduct returns nil, nil on a miss.
type ProductCache interface {
	GetProduct(ctx context.Context, sku string) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product) error
}

// DetailFetcher loads full product records for identifiers returned by the
// resolver.
type DetailFetcher struct {
	poster  URLPoster
	url     string
	opts    transport.Options
	cache   ProductCache
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

type DetailOption func(*DetailFetcher)

func WithCache(c ProductCache) DetailOption {
	return func(f *DetailFetcher) {
		f.cache = c
	}
}

// WithRateLimit caps outbound product requests. Cache hits are not limited.
func WithRateLimit(l *rate.Limiter) DetailOption {
	return func(f *DetailFetcher) {
		f.limiter = l
	}
}

func WithDetailLogger(l *zap.Logger) DetailOption {
	return func(f *DetailFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewDetailFetcher(poster URLPoster, url string, opts transport.Options, options ...DetailOption) *DetailFetcher {
	f := &DetailFetcher{
		poster: poster,
		url:    url,
		opts:   opts,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// GetDetails returns records for skus in request order. Duplicate SKUs are
// collapsed to their first occurrence and SKUs the upstream does not know are
// skipped.
func (f *DetailFetcher) GetDetails(ctx context.Context, skus []string) ([]models.Product, error) {
	skus = dedupe(skus)
	if len(skus) == 0 {
		return []models.Product{}, nil
	}

	found := make(map[string]models.Product, len(skus))
	missing := make([]string, 0, len(skus))
	for _, sku := range skus {
		if p := f.cached(ctx, sku); p != nil {
			found[sku] = *p
			continue
		}
		missing = append(missing, sku)
	}
	f.logger.Debug("product details lookup",
		zap.Int("requested", len(skus)),
		zap.Int("cached", len(skus)-len(missing)))

	if len(missing) > 0 {
		fetched, err := f.fetch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i := range fetched {
			p := fetched[i]
			found[p.SKU] = p
			f.store(ctx, &p)
		}
	}

	products := make([]models.Product, 0, len(skus))
	for _, sku := range skus {
		if p, ok := found[sku]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// GetDetail returns the record for one SKU, or nil when it is unknown.
func (f *DetailFetcher) GetDetail(ctx context.Context, sku string) (*models.Product, error) {
	products, err := f.GetDetails(ctx, []string{sku})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (f *DetailFetcher) fetch(ctx context.Context, skus []string) ([]models.Product, error) {
	body := map[string]any{
		"skus":           skus,
		"includeDetails": true,
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch product details: %w", err)
		}
	}
	raw, err := f.poster.PostURL(ctx, f.url, body, f.opts)
	if err != nil {
		return nil, fmt.Errorf("fetch product details: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case map[string]any:
		items, _ = v["products"].([]any)
	case []any:
		items = v
	}

	fetchedAt := f.now()
	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := productFromMap(m)
		if p.SKU == "" {
			continue
		}
		p.FetchedAt = fetchedAt
		products = append(products, p)
	}
	return products, nil
}

func (f *DetailFetcher) cached(ctx context.Context, sku string) *models.Product {
	if f.cache == nil {
		return nil
	}
	p, err := f.cache.GetProduct(ctx, sku)
	if err != nil {
		f.logger.Debug("product cache read failed", zap.String("sku", sku), zap.Error(err))
		return nil
	}
	return p
}

func (f *DetailFetcher) store(ctx context.Context, p *models.Product) {
	if f.cache == nil {
		return
	}
	if err := f.cache.SetProduct(ctx, p); err != nil {
		f.logger.Debug("product cache write failed", zap.String("sku", p.SKU), zap.Error(err))
	}
}

func dedupe(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}

// productFromMap reads a loosely typed upstream record. Prices and stock may
// arrive as numbers or as display text.
func productFromMap(m map[string]any) models.Product {
	p := models.Product{
		SKU:            stringField(m, "sku"),
		Title:          stringField(m, "title"),
		Brand:          stringField(m, "brand"),
		Price:          priceField(m, "price"),
		OriginalPrice:  priceField(m, "originalPrice"),
		Discount:       priceField(m, "discount"),
		Image:          stringField(m, "image"),
		Specifications: stringField(m, "specifications"),
		Stock:          stockField(m, "stock"),
		StockStatus:    stringField(m, "stockStatus"),
		Category:       stringField(m, "category"),
		BrandLogo:      stringField(m, "brandLogo"),
	}
	if list, ok := m["features"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				p.Features = append(p.Features, s)
			}
		}
	}
	return p
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func stockField(m map[string]any, key string) int {
	if s, ok := m[key].(string); ok {
		return utils.ParseStock(s)
	}
	return int(priceField(m, key))
}

func priceField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	case string:
		return utils.ParsePrice(v)
	}
	return 0
}
