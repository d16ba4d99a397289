package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalogue entry an order line references. Stock is a plain
// counter; it has no history and is only changed through the stock ledger.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Price     Cents     `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StockLine is a quantity of one product, used when reserving or
// restoring stock for a whole order.
type StockLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// StockLines collapses order items into one line per product.
func StockLines(items []OrderItem) []StockLine {
	index := make(map[uuid.UUID]int, len(items))
	lines := make([]StockLine, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
