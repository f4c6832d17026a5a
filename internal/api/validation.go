package api

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/TatisVivas/zakekeSample/internal/domain"
)

const (
	maxOrderItems   = 100
	maxItemQuantity = 1000
	maxCodeLength   = 64
)

// Catalog codes are numeric strings, matching the vendor catalog format.
var productCodePattern = regexp.MustCompile(`^[0-9]{1,20}$`)

func validateProductRequest(req ProductRequest) error {
	if req.Code == "" {
		return fmt.Errorf("code is required")
	}
	if !productCodePattern.MatchString(req.Code) {
		return fmt.Errorf("code must be numeric")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if req.BasePrice != nil && *req.BasePrice < 0 {
		return fmt.Errorf("basePrice must not be negative")
	}
	if req.Currency != nil && len(*req.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code")
	}
	if req.ImageURL != nil && *req.ImageURL != "" {
		if err := validateImageURL(*req.ImageURL); err != nil {
			return fmt.Errorf("invalid imageUrl: %w", err)
		}
	}
	return nil
}

// validateImageURL accepts absolute http(s) URLs and site-relative paths.
func validateImageURL(raw string) error {
	if strings.HasPrefix(raw, "/") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func validateQuantity(q *int) error {
	if q == nil {
		return nil
	}
	if *q < 1 || *q > maxItemQuantity {
		return fmt.Errorf("quantity must be between 1 and %d", maxItemQuantity)
	}
	return nil
}

func validateCartItemRequest(req CartItemRequest) error {
	if strings.TrimSpace(req.SKU) == "" {
		return fmt.Errorf("sku is required")
	}
	return validateQuantity(req.Quantity)
}

func validateCreateOrder(req CreateOrderRequest) error {
	if len(req.Code) > maxCodeLength {
		return fmt.Errorf("code must be at most %d characters", maxCodeLength)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("items are required")
	}
	if len(req.Items) > maxOrderItems {
		return fmt.Errorf("at most %d items per order", maxOrderItems)
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.SKU) == "" {
			return fmt.Errorf("items[%d]: sku is required", i)
		}
		q := item.Quantity
		if err := validateQuantity(&q); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("items[%d]: unitPrice must not be negative", i)
		}
	}
	if req.Total < 0 {
		return fmt.Errorf("total must not be negative")
	}
	if req.OrderDate != "" {
		if _, err := time.Parse(time.RFC3339, req.OrderDate); err != nil {
			return fmt.Errorf("orderDate must be RFC3339")
		}
	}
	return nil
}

func validateProductOptions(opts []domain.ProductOption) error {
	for i, opt := range opts {
		if opt.Code == "" || opt.Name == "" {
			return fmt.Errorf("options[%d]: code and name are required", i)
		}
		for j, v := range opt.Values {
			if v.Code == "" || v.Name == "" {
				return fmt.Errorf("options[%d].values[%d]: code and name are required", i, j)
			}
		}
	}
	return nil
}
