package warehouse

import (
	"time"
)

// Region groups warehouses geographically. Useful as a source with a
// two-level collection nesting for flattening.
type Region struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Warehouses []Warehouse `json:"warehouses"`
}

// Warehouse is a physical storage site.
type Warehouse struct {
	Code     string      `json:"code"`
	Capacity int         `json:"capacity"`
	Bins     []Bin       `json:"bins"`
	Shipment []StockMove `json:"shipments"`
}

// Bin is a labeled storage location within a warehouse.
type Bin struct {
	Label string      `json:"label"`
	Lines []StockLine `json:"lines"`
}

// StockLine is one SKU's quantity within a bin.
type StockLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Reserved int    `json:"reserved"`
}

// StockMove tracks inventory entering or leaving a warehouse.
type StockMove struct {
	SKU      string    `json:"sku"`
	Quantity int       `json:"quantity"`
	Inbound  bool      `json:"inbound"`
	MovedAt  time.Time `json:"moved_at"`
}
