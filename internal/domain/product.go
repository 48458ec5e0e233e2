package domain

import "time"

// ============================================================
// Products
// ============================================================

// Product is an item of the pharmacy catalog.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Stock             int       `json:"stock"`
	Tags              []string  `json:"tags"`
	NeedsPrescription bool      `json:"needs_prescription"`
	Controlled        bool      `json:"controlled"`
	Interval          *int      `json:"interval,omitempty"` // repurchase interval in days
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// ProductInput is the payload for creating a product.
type ProductInput struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	Stock             int      `json:"stock"`
	Tags              []string `json:"tags,omitempty"`
	NeedsPrescription bool     `json:"needs_prescription"`
	Controlled        bool     `json:"controlled"`
	Interval          *int     `json:"interval,omitempty"`
}

// ProductPatch carries the fields to change; nil fields are left untouched.
type ProductPatch struct {
	Name              *string   `json:"name,omitempty"`
	Category          *string   `json:"category,omitempty"`
	Stock             *int      `json:"stock,omitempty"`
	Tags              *[]string `json:"tags,omitempty"`
	NeedsPrescription *bool     `json:"needs_prescription,omitempty"`
	Controlled        *bool     `json:"controlled,omitempty"`
	Interval          *int      `json:"interval,omitempty"`
}

func (p *ProductPatch) Row() map[string]any {
	row := map[string]any{}
	if p.Name != nil {
		row["name"] = *p.Name
	}
	if p.Category != nil {
		row["category"] = *p.Category
	}
	if p.Stock != nil {
		row["stock"] = *p.Stock
	}
	if p.Tags != nil {
		row["tags"] = *p.Tags
	}
	if p.NeedsPrescription != nil {
		row["needs_prescription"] = *p.NeedsPrescription
	}
	if p.Controlled != nil {
		row["controlled"] = *p.Controlled
	}
	if p.Interval != nil {
		row["interval"] = *p.Interval
	}
	return row
}
