package backfill

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/calcsnap/internal/calculation"
	"github.com/steveyegge/calcsnap/internal/debug"
)

// Options tune reconstruction and the pass around it. The zero value is the
// production configuration.
type Options struct {
	// StrictHeaders turns a conflicting duplicate header into ErrConflictingHeader.
	StrictHeaders bool
	// LenientForeignIncome degrades a malformed foreign income payload to
	// "no foreign income" instead of failing the pass.
	LenientForeignIncome bool
	// SchemaOnly adds the snapshot column and stops.
	SchemaOnly bool
	// DryRun reconstructs snapshots without touching the schema or writing.
	DryRun bool

	Clock func() time.Time // capture time; defaults to time.Now
	NewID func() string    // calculation id; defaults to uuid.NewString
	Warnf func(format string, args ...any)
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Warnf == nil {
		o.Warnf = debug.Warnf
	}
	return o
}

// Reconstructed pairs a legacy parent id with the calculation rebuilt for it.
type Reconstructed struct {
	ParentID    string
	Calculation calculation.Calculation
}

// Reconstruct rebuilds one calculation per aggregated parent, in the order
// the parents were first seen.
func Reconstruct(agg *Aggregate, opts Options) ([]Reconstructed, error) {
	opts = opts.withDefaults()
	out := make([]Reconstructed, 0, len(agg.Calculations))
	for _, lc := range agg.Calculations {
		c, err := reconstructOne(lc, agg.Deductions[lc.ParentID], opts)
		if err != nil {
			return nil, fmt.Errorf("calculation %s: %w", lc.ParentID, err)
		}
		out = append(out, Reconstructed{ParentID: lc.ParentID, Calculation: c})
	}
	return out, nil
}

func reconstructOne(lc LegacyCalculation, rows []LegacyDeduction, opts Options) (calculation.Calculation, error) {
	period := calculation.Period{Start: lc.PeriodStart, End: lc.PeriodEnd}

	rate, err := calculation.ParseRate(lc.Rate)
	if err != nil {
		return calculation.Calculation{}, err
	}

	deductions := make([]calculation.Deduction, 0, len(rows))
	for i, row := range rows {
		typ, err := calculation.ParseDeductionType(row.Type)
		if err != nil {
			return calculation.Calculation{}, fmt.Errorf("deduction %d: %w", i, err)
		}
		fi, err := parseForeignIncome(row.ForeignIncome, opts, lc.ParentID, i)
		if err != nil {
			return calculation.Calculation{}, fmt.Errorf("deduction %d: %w", i, err)
		}
		deductions = append(deductions, calculation.Deduction{
			Type:          typ,
			Amount:        row.Amount,
			Period:        period,
			ForeignIncome: fi,
		})
	}

	return calculation.Calculation{
		ID:         opts.NewID(),
		CreatedAt:  opts.Clock(),
		Period:     period,
		Rate:       rate,
		Deductions: deductions,
	}, nil
}

func parseForeignIncome(payload *string, opts Options, parentID string, index int) (*calculation.ForeignIncome, error) {
	if payload == nil {
		return nil, nil
	}
	fi, err := calculation.ParseForeignIncome(*payload)
	if err != nil {
		if opts.LenientForeignIncome {
			opts.Warnf("calculation %s deduction %d: dropping foreign income: %v\n", parentID, index, err)
			return nil, nil
		}
		return nil, err
	}
	return fi, nil
}
