package model

import "time"

// QuoteItem is a single priced line in a quote.
type QuoteItem struct {
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

// Quote is a priced installation offer for a project, in NTD.
type Quote struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id,omitempty"`
	CapacityKW float64     `json:"capacity_kw"`
	Items      []QuoteItem `json:"items"`
	Subtotal   float64     `json:"subtotal"`
	Tax        float64     `json:"tax"` // 5% business tax
	Total      float64     `json:"total"`
	Currency   string      `json:"currency"`
	CreatedAt  time.Time   `json:"created_at"`
}
