package backfill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/calcsnap/internal/calculation"
)

func TestAggregateRows(t *testing.T) {
	rows := []Row{
		deduction(p2, "HØY", "Arbeidsinntekt", 500, nil),
		header(p1, "ORDINÆR"),
		deduction(p2, "HØY", "Kapitalinntekt", 200, str("null")),
	}

	agg, err := AggregateRows(rows, false, nil)
	require.NoError(t, err)

	require.Len(t, agg.Calculations, 2)
	assert.Equal(t, p2, agg.Calculations[0].ParentID, "first-seen order")
	assert.Equal(t, p1, agg.Calculations[1].ParentID)

	assert.NotContains(t, agg.Deductions, p1, "null type rows are not deductions")
	require.Len(t, agg.Deductions[p2], 2)
	assert.Equal(t, "Arbeidsinntekt", agg.Deductions[p2][0].Type)
	assert.Equal(t, "Kapitalinntekt", agg.Deductions[p2][1].Type)
	assert.Equal(t, "null", *agg.Deductions[p2][1].ForeignIncome)
}

func TestAggregateRowsEmpty(t *testing.T) {
	agg, err := AggregateRows(nil, true, nil)
	require.NoError(t, err)
	assert.Empty(t, agg.Calculations)
	assert.Empty(t, agg.Deductions)
}

func TestAggregateRowsConflicts(t *testing.T) {
	later := header(p1, "HØY")
	later.PeriodEnd = calculation.NewDate(2021, time.February, 28)
	rows := []Row{header(p1, "HØY"), later, header(p1, "HØY")}

	var msgs []string
	agg, err := AggregateRows(rows, false, func(format string, args ...any) {
		msgs = append(msgs, format)
	})
	require.NoError(t, err)
	require.Len(t, agg.Calculations, 1)
	assert.Equal(t, jan31, agg.Calculations[0].PeriodEnd)
	assert.Equal(t, 1, agg.Conflicts, "identical repeats are not conflicts")
	assert.Len(t, msgs, 1)

	_, err = AggregateRows(rows, true, nil)
	require.ErrorIs(t, err, ErrConflictingHeader)
	assert.Contains(t, err.Error(), "2021-02-28")
}
