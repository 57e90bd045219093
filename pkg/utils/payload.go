package utils

import (
	"encoding/json"
	"fmt"

	"storefront-search/internal/models"
)

// GenerateAPIPayload builds the legacy search body and returns it as JSON text.
// searchFlag defaults to "Y" when empty.
func GenerateAPIPayload(query, searchFlag string, filters models.SearchFilters) (string, error) {
	if searchFlag == "" {
		searchFlag = models.SearchFlagSearch
	}

	payload := models.RequestPayload{
		Query:      query,
		SearchFlag: searchFlag,
		Filters: models.WireFilters{
			ProductLine:   filters.ProductLine,
			Brand:         filters.Brand,
			WarehouseCode: filters.WarehouseCode,
			ProductType:   filters.ProductType,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal search payload: %w", err)
	}
	return string(data), nil
}
