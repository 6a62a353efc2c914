package backfill

import (
	"fmt"
)

// Aggregate is the grouped form of the legacy join.
type Aggregate struct {
	// Calculations holds one header per distinct parent id in first-seen order.
	Calculations []LegacyCalculation
	// Deductions indexes deduction rows by parent id, in row order. Rows with
	// a null type are absent; identical rows are kept.
	Deductions map[string][]LegacyDeduction
	// Conflicts counts header rows that disagreed with the first header seen
	// for their parent and were dropped.
	Conflicts int
}

// AggregateRows groups rows in a single pass.
//
// Rows for the same parent normally repeat an identical header. When a later
// row carries a different period or rate for a parent already seen, the first
// header wins and warnf is told about it; with strict set the pass aborts
// with ErrConflictingHeader instead.
func AggregateRows(rows []Row, strict bool, warnf func(format string, args ...any)) (*Aggregate, error) {
	agg := &Aggregate{Deductions: make(map[string][]LegacyDeduction)}
	first := make(map[string]int, len(rows))

	for _, r := range rows {
		if idx, seen := first[r.ParentID]; !seen {
			first[r.ParentID] = len(agg.Calculations)
			agg.Calculations = append(agg.Calculations, r.header())
		} else if kept := agg.Calculations[idx]; kept != r.header() {
			if strict {
				return nil, fmt.Errorf("%w: %s has %s..%s %s and %s..%s %s", ErrConflictingHeader, r.ParentID,
					kept.PeriodStart, kept.PeriodEnd, kept.Rate, r.PeriodStart, r.PeriodEnd, r.Rate)
			}
			agg.Conflicts++
			if warnf != nil {
				warnf("calculation %s: ignoring header %s..%s %s, keeping first seen %s..%s %s\n", r.ParentID,
					r.PeriodStart, r.PeriodEnd, r.Rate, kept.PeriodStart, kept.PeriodEnd, kept.Rate)
			}
		}

		if r.DeductionType == nil {
			continue
		}
		agg.Deductions[r.ParentID] = append(agg.Deductions[r.ParentID], LegacyDeduction{
			ParentID:      r.ParentID,
			Type:          *r.DeductionType,
			Amount:        r.Amount,
			ForeignIncome: r.ForeignIncome,
		})
	}

	return agg, nil
}
