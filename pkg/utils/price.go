package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice converts a price string such as "S/ 459.00" or "$1,299.99" to float64.
func ParsePrice(priceStr string) float64 {
	if priceStr == "" {
		return 0
	}

	// Thousands separators only; the storefront always uses '.' for decimals
	cleanPrice := strings.ReplaceAll(priceStr, ",", "")
	cleanPrice = strings.TrimSpace(cleanPrice)

	match := numberPattern.FindString(cleanPrice)
	if match == "" {
		return 0
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}

	return price
}

// ParseStock extracts a unit count from stock text like "> 100 und" or "4".
func ParseStock(stockStr string) int {
	match := numberPattern.FindString(stockStr)
	if match == "" {
		return 0
	}

	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return int(n)
}
