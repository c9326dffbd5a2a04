package models

import (
	"github.com/shopspring/decimal"
)

// Ticket is a local read replica of the tickets service's data. The id is
// assigned by the tickets service and the version is its change counter;
// both arrive on the stream and are never generated here.
type Ticket struct {
	ID      int64           `db:"id" json:"id"`
	Title   string          `db:"title" json:"title"`
	Price   decimal.Decimal `db:"price" json:"price"`
	Version int64           `db:"version" json:"version"`
}
