package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-search/internal/models"
	"storefront-search/internal/services"
)

const (
	serviceName    = "storefront-search"
	serviceVersion = "1.0.0"
)

type searcher interface {
	Resolve(ctx context.Context, query string, filters models.SearchFilters) ([]string, error)
	ResolveByCategory(ctx context.Context, query, productLine string) ([]string, error)
	ResolveByBrand(ctx context.Context, query, brand string) ([]string, error)
}

type detailer interface {
	GetDetails(ctx context.Context, skus []string) ([]models.Product, error)
}

// cacheAdmin is the subset of *cache.RedisCache used by the admin routes.
type cacheAdmin interface {
	IsAvailable() bool
	GetStats(ctx context.Context) map[string]any
	GetAllKeys(ctx context.Context) []string
	GetKeyTTL(ctx context.Context, key string) time.Duration
	FlushCache(ctx context.Context) (int, error)
}

type server struct {
	resolver searcher
	details  detailer
	cache    cacheAdmin
	limiter  *ipRateLimiter
	logger   *zap.Logger
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(), requestLogger(s.logger), s.limiter.middleware())

	r.GET("/health", s.health)
	r.GET("/rate-limit/status", s.rateLimitStatus)
	r.GET("/cache/stats", s.cacheStats)
	r.GET("/cache/debug", s.cacheDebug)
	r.DELETE("/cache/flush", s.cacheFlush)

	r.GET("/search", s.search)
	r.GET("/search/category/:category", s.searchByCategory)
	r.GET("/search/brand/:brand", s.searchByBrand)
	r.POST("/products", s.products)
	r.GET("/storefront", s.storefront)
	r.GET("/api/info", s.apiInfo)
	return r
}

func (s *server) health(c *gin.Context) {
	health := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	}
	if s.cache.IsAvailable() {
		health["cache"] = "redis connected"
	} else {
		health["cache"] = "redis unavailable"
	}
	c.JSON(http.StatusOK, health)
}

func (s *server) rateLimitStatus(c *gin.Context) {
	ip := c.ClientIP()
	limiter := s.limiter.get(ip)

	c.JSON(http.StatusOK, gin.H{
		"ip":               ip,
		"limit_per_second": float64(limiter.Limit()),
		"burst_capacity":   limiter.Burst(),
		"tokens_available": limiter.Tokens(),
	})
}

func (s *server) cacheStats(c *gin.Context) {
	if !s.cache.IsAvailable() {
		cacheUnavailable(c)
		return
	}
	c.JSON(http.StatusOK, s.cache.GetStats(c.Request.Context()))
}

func (s *server) cacheDebug(c *gin.Context) {
	if !s.cache.IsAvailable() {
		cacheUnavailable(c)
		return
	}
	ctx := c.Request.Context()
	keys := s.cache.GetAllKeys(ctx)

	keyDetails := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		ttl := s.cache.GetKeyTTL(ctx, key)
		keyDetails = append(keyDetails, gin.H{
			"key":         key,
			"ttl_seconds": int(ttl.Seconds()),
			"expires_in":  ttl.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_keys":  len(keys),
		"cache_keys":  keyDetails,
		"cache_stats": s.cache.GetStats(ctx),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (s *server) cacheFlush(c *gin.Context) {
	if !s.cache.IsAvailable() {
		cacheUnavailable(c)
		return
	}
	n, err := s.cache.FlushCache(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "cache_flush_failed",
			Code:    http.StatusInternalServerError,
			Message: "failed to flush cache",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "cache flushed successfully",
		"deleted":   n,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *server) search(c *gin.Context) {
	var req models.SearchRequest
	if !bindQuery(c, &req) {
		return
	}
	s.respondSearch(c, req.Query, req.SearchFilters, func(ctx context.Context) ([]string, error) {
		return s.resolver.Resolve(ctx, req.Query, req.SearchFilters)
	})
}

func (s *server) searchByCategory(c *gin.Context) {
	var req models.SearchRequest
	if !bindQuery(c, &req) {
		return
	}
	category := c.Param("category")
	s.respondSearch(c, req.Query, models.SearchFilters{ProductLine: category}, func(ctx context.Context) ([]string, error) {
		return s.resolver.ResolveByCategory(ctx, req.Query, category)
	})
}

func (s *server) searchByBrand(c *gin.Context) {
	var req models.SearchRequest
	if !bindQuery(c, &req) {
		return
	}
	brand := c.Param("brand")
	s.respondSearch(c, req.Query, models.SearchFilters{Brand: brand}, func(ctx context.Context) ([]string, error) {
		return s.resolver.ResolveByBrand(ctx, req.Query, brand)
	})
}

func (s *server) respondSearch(c *gin.Context, query string, filters models.SearchFilters, resolve func(context.Context) ([]string, error)) {
	start := time.Now()
	ids, err := resolve(c.Request.Context())
	if err != nil {
		s.searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SearchResponse{
		Query:       strings.TrimSpace(query),
		Identifiers: ids,
		Count:       len(ids),
		Filters:     filters,
		Duration:    time.Since(start).String(),
	})
}

func (s *server) products(c *gin.Context) {
	var req models.DetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	products, err := s.details.GetDetails(c.Request.Context(), req.SKUs)
	if err != nil {
		s.upstreamError(c, "details_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
	})
}

// storefront resolves identifiers and loads their records in one call.
func (s *server) storefront(c *gin.Context) {
	var req models.SearchRequest
	if !bindQuery(c, &req) {
		return
	}
	start := time.Now()
	ctx := c.Request.Context()

	ids, err := s.resolver.Resolve(ctx, req.Query, req.SearchFilters)
	if err != nil {
		s.searchError(c, err)
		return
	}
	products, err := s.details.GetDetails(ctx, ids)
	if err != nil {
		s.upstreamError(c, "details_failed", err)
		return
	}
	c.JSON(http.StatusOK, models.StorefrontResponse{
		Query:       strings.TrimSpace(req.Query),
		Identifiers: ids,
		Products:    products,
		Total:       len(products),
		Filters:     req.SearchFilters,
		Duration:    time.Since(start).String(),
	})
}

func (s *server) apiInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Storefront Search API",
		"version":     serviceVersion,
		"description": "Resolves storefront queries to product identifiers and loads product details",
		"endpoints": map[string]string{
			"GET /search":                    "Resolve a query (q) with optional line, brand, warehouse, type filters",
			"GET /search/category/:category": "Resolve a query within a product line",
			"GET /search/brand/:brand":       "Resolve a query within a brand",
			"POST /products":                 "Load product details for a list of SKUs",
			"GET /storefront":                "Resolve a query and load its product details",
			"GET /health":                    "Health check",
			"GET /cache/stats":               "Cache statistics",
			"DELETE /cache/flush":            "Remove cached product records",
			"GET /rate-limit/status":         "Rate limit state for the caller",
		},
	})
}

func (s *server) searchError(c *gin.Context, err error) {
	var failed *services.SearchFailedError
	if errors.As(err, &failed) {
		s.upstreamError(c, "search_failed", err)
		return
	}
	s.logger.Error("unexpected search error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	})
}

func (s *server) upstreamError(c *gin.Context, code string, err error) {
	s.logger.Warn("upstream request failed", zap.String("error_code", code), zap.Error(err))
	c.JSON(http.StatusBadGateway, models.ErrorResponse{
		Error:   code,
		Code:    http.StatusBadGateway,
		Message: err.Error(),
	})
}

func bindQuery(c *gin.Context, req *models.SearchRequest) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}

func cacheUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error:   "cache_unavailable",
		Code:    http.StatusServiceUnavailable,
		Message: "cache not available",
	})
}
