package models

import (
	"time"
)

// SearchFilters narrows a search by named facets. Empty values mean "no filter".
type SearchFilters struct {
	ProductLine   string `json:"productLine,omitempty" form:"line"`
	Brand         string `json:"brand,omitempty" form:"brand"`
	WarehouseCode string `json:"warehouseCode,omitempty" form:"warehouse"`
	ProductType   string `json:"productType,omitempty" form:"type"`
}

// WireFilters is the upstream representation of SearchFilters. Every key is
// always present, defaulting to "".
type WireFilters struct {
	ProductLine   string `json:"linea_de_producto"`
	Brand         string `json:"marca_de_producto"`
	WarehouseCode string `json:"almacen_codigo"`
	ProductType   string `json:"tipo_producto"`
}

// RequestPayload is the body posted to the search endpoint.
type RequestPayload struct {
	Query      string      `json:"pregunta"`
	SearchFlag string      `json:"buscador"`
	Filters    WireFilters `json:"filtros"`
}

const (
	SearchFlagSearch = "Y"
	SearchFlagLegacy = "N"
)

type Product struct {
	SKU            string    `json:"sku"`
	Title          string    `json:"title"`
	Brand          string    `json:"brand"`
	Price          float64   `json:"price"`
	OriginalPrice  float64   `json:"originalPrice,omitempty"`
	Discount       float64   `json:"discount,omitempty"`
	Image          string    `json:"image,omitempty"`
	Specifications string    `json:"specifications,omitempty"`
	Stock          int       `json:"stock"`
	StockStatus    string    `json:"stockStatus,omitempty"`
	Category       string    `json:"category,omitempty"`
	Features       []string  `json:"features,omitempty"`
	BrandLogo      string    `json:"brandLogo,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

type SearchRequest struct {
	Query string `form:"q" binding:"required"`
	SearchFilters
}

type SearchResponse struct {
	Query       string        `json:"query"`
	Identifiers []string      `json:"skus"`
	Count       int           `json:"count"`
	Filters     SearchFilters `json:"filters"`
	Duration    string        `json:"duration"`
}

type DetailsRequest struct {
	SKUs []string `json:"skus" binding:"required,min=1,dive,required"`
}

type StorefrontResponse struct {
	Query       string        `json:"query"`
	Identifiers []string      `json:"skus"`
	Products    []Product     `json:"products"`
	Total       int           `json:"total"`
	Filters     SearchFilters `json:"filters"`
	Duration    string        `json:"duration"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
