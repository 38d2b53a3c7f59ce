package model

// Account is the single trading account: KRW cash plus one BTC position.
type Account struct {
	Cash     float64 `json:"cash"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// PositionValue returns the notional value of the held position at price.
func (a Account) PositionValue(price float64) float64 { return a.Quantity * price }

// Equity returns cash plus position value at price.
func (a Account) Equity(price float64) float64 { return a.Cash + a.PositionValue(price) }

// Holding reports whether any position is held.
func (a Account) Holding() bool { return a.Quantity > 0 }
