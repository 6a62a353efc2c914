package backfill

import (
	"github.com/steveyegge/calcsnap/internal/calculation"
)

// Row is one result row of the legacy join: a calculation header paired
// with at most one of its deductions. DeductionType is nil when the
// calculation has no deductions (the outer side of the join).
type Row struct {
	ParentID      string
	PeriodStart   calculation.Date
	PeriodEnd     calculation.Date
	Rate          string
	DeductionType *string
	Amount        int64
	ForeignIncome *string
}

// LegacyCalculation is the header of one distinct parent.
type LegacyCalculation struct {
	ParentID    string
	PeriodStart calculation.Date
	PeriodEnd   calculation.Date
	Rate        string
}

// LegacyDeduction is a deduction row with a non-null type.
type LegacyDeduction struct {
	ParentID      string
	Type          string
	Amount        int64
	ForeignIncome *string
}

func (r Row) header() LegacyCalculation {
	return LegacyCalculation{
		ParentID:    r.ParentID,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Rate:        r.Rate,
	}
}

// Layout names the legacy tables and the snapshot column. Column names
// inside the tables are fixed by the legacy schema.
type Layout struct {
	CalculationTable string
	DeductionTable   string
	SnapshotColumn   string
}

// DefaultLayout is the schema the migration was written against.
func DefaultLayout() Layout {
	return Layout{
		CalculationTable: "beregning",
		DeductionTable:   "fradrag",
		SnapshotColumn:   "beregning_snapshot",
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.CalculationTable == "" {
		l.CalculationTable = d.CalculationTable
	}
	if l.DeductionTable == "" {
		l.DeductionTable = d.DeductionTable
	}
	if l.SnapshotColumn == "" {
		l.SnapshotColumn = d.SnapshotColumn
	}
	return l
}
