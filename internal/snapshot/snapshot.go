// Package snapshot defines the persisted JSON form of a reconstructed
// calculation. The format is write-only from the backfill's point of view:
// field names are stable, key order is not part of the contract.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/calcsnap/internal/calculation"
)

// Snapshot is the JSON document stored in the snapshot column.
type Snapshot struct {
	ID         string      `json:"id" yaml:"id"`
	CreatedAt  time.Time   `json:"createdAt" yaml:"createdAt"`
	Period     Period      `json:"period" yaml:"period"`
	Rate       string      `json:"rate" yaml:"rate"`
	Deductions []Deduction `json:"deductions" yaml:"deductions"`
}

type Period struct {
	Start calculation.Date `json:"start" yaml:"start"`
	End   calculation.Date `json:"end" yaml:"end"`
}

type Deduction struct {
	Type          string         `json:"type" yaml:"type"`
	Amount        int64          `json:"amount" yaml:"amount"`
	Period        Period         `json:"period" yaml:"period"`
	ForeignIncome *ForeignIncome `json:"foreignIncome" yaml:"foreignIncome"`
}

type ForeignIncome struct {
	AmountInForeignCurrency int64   `json:"amountInForeignCurrency" yaml:"amountInForeignCurrency"`
	Currency                string  `json:"currency" yaml:"currency"`
	ExchangeRate            float64 `json:"exchangeRate" yaml:"exchangeRate"`
	Valid                   bool    `json:"valid" yaml:"valid"`
}

// FromCalculation converts c to its snapshot form. Deductions is never nil so
// that a calculation without deductions serializes as an empty array.
func FromCalculation(c calculation.Calculation) Snapshot {
	s := Snapshot{
		ID:         c.ID,
		CreatedAt:  c.CreatedAt.UTC(),
		Period:     periodOf(c.Period),
		Rate:       string(c.Rate),
		Deductions: make([]Deduction, 0, len(c.Deductions)),
	}
	for _, d := range c.Deductions {
		sd := Deduction{
			Type:   string(d.Type),
			Amount: d.Amount,
			Period: periodOf(d.Period),
		}
		if fi := d.ForeignIncome; fi != nil {
			sd.ForeignIncome = &ForeignIncome{
				AmountInForeignCurrency: fi.AmountInForeignCurrency,
				Currency:                fi.Currency,
				ExchangeRate:            fi.ExchangeRate,
				Valid:                   fi.Valid,
			}
		}
		s.Deductions = append(s.Deductions, sd)
	}
	return s
}

func periodOf(p calculation.Period) Period {
	return Period{Start: p.Start, End: p.End}
}

// Marshal serializes c as a snapshot document.
func Marshal(c calculation.Calculation) ([]byte, error) {
	b, err := json.Marshal(FromCalculation(c))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot %s: %w", c.ID, err)
	}
	return b, nil
}

// Structural returns s without its generated identity and capture time.
// Two backfill runs over the same legacy data yield equal Structural values.
func (s Snapshot) Structural() Snapshot {
	s.ID = ""
	s.CreatedAt = time.Time{}
	return s
}
