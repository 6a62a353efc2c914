package calculation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedForeignIncome is returned when a stored foreign income payload
// is not a JSON object carrying every ForeignIncome field.
var ErrMalformedForeignIncome = errors.New("malformed foreign income payload")

// ForeignIncome annotates a deduction earned in a foreign currency.
type ForeignIncome struct {
	AmountInForeignCurrency int64
	Currency                string
	ExchangeRate            float64
	Valid                   bool
}

type foreignIncomePayload struct {
	AmountInForeignCurrency *json.Number `json:"amountInForeignCurrency"`
	Currency                *string      `json:"currency"`
	ExchangeRate            *float64     `json:"exchangeRate"`
	Valid                   *bool        `json:"valid"`
}

// ParseForeignIncome parses the nested foreign income payload stored on a
// legacy deduction row. An empty payload or JSON null means the deduction has
// no foreign income and yields (nil, nil).
func ParseForeignIncome(payload string) (*ForeignIncome, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	var p foreignIncomePayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedForeignIncome, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedForeignIncome)
	}

	var missing []string
	if p.AmountInForeignCurrency == nil {
		missing = append(missing, "amountInForeignCurrency")
	}
	if p.Currency == nil {
		missing = append(missing, "currency")
	}
	if p.ExchangeRate == nil {
		missing = append(missing, "exchangeRate")
	}
	if p.Valid == nil {
		missing = append(missing, "valid")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedForeignIncome, strings.Join(missing, ", "))
	}

	amount, err := wholeAmount(*p.AmountInForeignCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: amountInForeignCurrency: %v", ErrMalformedForeignIncome, err)
	}

	return &ForeignIncome{
		AmountInForeignCurrency: amount,
		Currency:                *p.Currency,
		ExchangeRate:            *p.ExchangeRate,
		Valid:                   *p.Valid,
	}, nil
}

// wholeAmount accepts integers and integral floats such as 1000.0.
func wholeAmount(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s is not a whole amount", n)
	}
	return int64(f), nil
}
