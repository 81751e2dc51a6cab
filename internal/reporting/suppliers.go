package reporting

import (
	"github.com/shopspring/decimal"

	"opsdesk/internal/core"
)

// SupplierPrice is the latest observed price of one supplier.
type SupplierPrice struct {
	SupplierID string    `json:"supplierId"`
	Supplier   string    `json:"supplier"`
	Price      float64   `json:"price"`
	Date       core.Date `json:"date"`
}

// Comparison summarizes the latest prices of one product.
type Comparison struct {
	ProductID string          `json:"productId"`
	Product   string          `json:"product"`
	Unit      string          `json:"unit"`
	Latest    []SupplierPrice `json:"latest"`
	Average   float64         `json:"average"`
	Best      *SupplierPrice  `json:"best,omitempty"`
}

// CompareSuppliers takes, per product, each supplier's most recently dated
// price (same-date ties go to the record added last), averages them and picks
// the cheapest. Equal minimums go to the supplier created first. Products
// without prices are reported with no best offer.
func CompareSuppliers(products []core.Product, suppliers []core.Supplier, prices []core.PriceRecord) []Comparison {
	out := make([]Comparison, 0, len(products))
	for _, p := range products {
		latest := make(map[string]core.PriceRecord)
		for _, r := range prices {
			if r.ProductID != p.ID {
				continue
			}
			// prices is in insertion order: a later same-date record replaces.
			if cur, ok := latest[r.SupplierID]; !ok || !r.Date.Before(cur.Date) {
				latest[r.SupplierID] = r
			}
		}

		c := Comparison{ProductID: p.ID, Product: p.Name, Unit: p.Unit, Latest: []SupplierPrice{}}
		sum := decimal.Zero
		// Suppliers are visited in creation order; the first minimum wins.
		for _, s := range suppliers {
			r, ok := latest[s.ID]
			if !ok {
				continue
			}
			sp := SupplierPrice{SupplierID: s.ID, Supplier: s.Name, Price: r.Price, Date: r.Date}
			c.Latest = append(c.Latest, sp)
			sum = sum.Add(decimal.NewFromFloat(r.Price))
			if c.Best == nil || sp.Price < c.Best.Price {
				best := sp
				c.Best = &best
			}
		}
		if n := len(c.Latest); n > 0 {
			c.Average = sum.Div(decimal.NewFromInt(int64(n))).Round(4).InexactFloat64()
		}
		out = append(out, c)
	}
	return out
}
