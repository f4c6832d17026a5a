package domain

// Product is a catalog entry. BasePrice is in minor currency units.
type Product struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	BasePrice    int64  `json:"basePrice"`
	Currency     string `json:"currency"`
	Customizable bool   `json:"customizable"`
	ModelCode    string `json:"zakekeModelCode,omitempty"`
}

// ProductOption follows the vendor catalog format: codes are numeric strings.
type ProductOption struct {
	Code   string               `json:"code"`
	Name   string               `json:"name"`
	Values []ProductOptionValue `json:"values"`
}

type ProductOptionValue struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
