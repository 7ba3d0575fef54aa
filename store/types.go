package store

import (
	"time"
)

// Product represents an individual item available for sale.
// Prices are int64 cents (lowest currency unit) to avoid floating-point errors.
type Product struct {
	ID         int64  `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// City is the innermost address component. It is deliberately its own
// type so that deep optional chains have several pointer hops.
type City struct {
	Name string `json:"name"`
}

// Address represents a customer address. City is optional.
type Address struct {
	Street string `json:"street"`
	City   *City  `json:"city,omitempty"`
}

// Customer represents the user placing orders. Address is optional.
type Customer struct {
	ID      int64    `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Address *Address `json:"address,omitempty"`
}

// Order represents a transaction made by a customer.
type Order struct {
	ID        int64       `json:"id"`
	Customer  *Customer   `json:"customer,omitempty"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items"` // Has-Many relationship
	OrderedAt time.Time   `json:"ordered_at"`
}

// OrderItem represents a specific product line within an order.
// It snapshots the price at the time of purchase.
type OrderItem struct {
	Product   *Product `json:"product,omitempty"`
	Name      string   `json:"name"` // Redundant but useful for history if product name changes
	Quantity  int      `json:"quantity"`
	UnitPrice int64    `json:"unit_price"`
}

// OrderStatus is a custom type for type-safe status handling.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusCancelled OrderStatus = "CANCELLED"
)
