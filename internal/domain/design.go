package domain

import "encoding/json"

// DesignQuery is one readiness check for a vendor-side design.
type DesignQuery struct {
	DesignID string
	Quantity int
	Token    Token
}

// Design is the subset of vendor design metadata the storefront reads.
// Raw keeps the full vendor payload so callers can pass it through untouched.
type Design struct {
	DesignID   string          `json:"designID"`
	ModelCode  string          `json:"modelCode,omitempty"`
	Name       string          `json:"name,omitempty"`
	Price      float64         `json:"price"`
	PreviewURL string          `json:"previewUrl,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

type DesignState string

const (
	DesignStateProcessing DesignState = "processing"
	DesignStateReady      DesignState = "ready"
	DesignStateFailed     DesignState = "failed"
)

// Terminal reports whether no further polling can change the state.
func (s DesignState) Terminal() bool {
	return s == DesignStateReady || s == DesignStateFailed
}

// DesignStatus is the outcome of a readiness check.
// Design is set only for Ready; Reason and StatusCode only for Failed.
type DesignStatus struct {
	State      DesignState
	Design     *Design
	Reason     string
	StatusCode int
	Attempt    int
}
