// Package backfill adds the calculation snapshot column and fills it from the
// legacy calculation and deduction tables.
//
// The pass is strictly sequential: read the join, group by parent, rebuild
// each calculation, serialize it, write it back. Any error aborts the pass.
// Re-running after a failure is safe because every write is an overwrite.
package backfill

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/snapshot"
	"github.com/steveyegge/calcsnap/internal/storage"
	"github.com/steveyegge/calcsnap/internal/telemetry"
)

// Result summarizes a pass.
type Result struct {
	Rows       int  `json:"rows" yaml:"rows"`
	Parents    int  `json:"parents" yaml:"parents"`
	Deductions int  `json:"deductions" yaml:"deductions"`
	Written    int  `json:"written" yaml:"written"`
	Conflicts  int  `json:"conflicts" yaml:"conflicts"`
	SchemaOnly bool `json:"schema_only" yaml:"schema_only"`
	DryRun     bool `json:"dry_run" yaml:"dry_run"`

	// Snapshots holds the rebuilt documents in parent order. Only a dry run
	// fills it.
	Snapshots []Entry `json:"snapshots,omitempty" yaml:"snapshots,omitempty"`
}

// Entry is one dry-run snapshot.
type Entry struct {
	ParentID string            `json:"parentId" yaml:"parentId"`
	Snapshot snapshot.Snapshot `json:"snapshot" yaml:"snapshot"`
}

// Run executes one pass. A dry run reads and reconstructs but never calls
// sink, so sink may be nil when opts.DryRun is set.
func Run(ctx context.Context, src Source, sink Sink, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	pass := telemetry.NewPass()
	res := &Result{SchemaOnly: opts.SchemaOnly, DryRun: opts.DryRun}

	if !opts.DryRun {
		sctx, stage := pass.Start(ctx, "schema")
		err := sink.EnsureSnapshotColumn(sctx)
		stage.End(sctx, err)
		if err != nil {
			return nil, err
		}
		debug.Logf("snapshot column ensured\n")
	}
	if opts.SchemaOnly {
		return res, nil
	}

	rctx, stage := pass.Start(ctx, "read")
	rows, err := src.ReadRows(rctx)
	stage.End(rctx, err)
	if err != nil {
		return nil, err
	}
	res.Rows = len(rows)
	pass.AddRows(ctx, len(rows))
	debug.Logf("read %d legacy rows\n", len(rows))

	agg, err := AggregateRows(rows, opts.StrictHeaders, opts.Warnf)
	if err != nil {
		return nil, err
	}
	res.Conflicts = agg.Conflicts

	cctx, stage := pass.Start(ctx, "reconstruct", attribute.Int("backfill.parents", len(agg.Calculations)))
	rebuilt, err := Reconstruct(agg, opts)
	stage.End(cctx, err)
	if err != nil {
		return nil, err
	}
	res.Parents = len(rebuilt)
	for _, r := range rebuilt {
		res.Deductions += len(r.Calculation.Deductions)
	}
	pass.AddParents(ctx, res.Parents)
	pass.AddDeductions(ctx, res.Deductions)

	if opts.DryRun {
		res.Snapshots = make([]Entry, 0, len(rebuilt))
		for _, r := range rebuilt {
			res.Snapshots = append(res.Snapshots, Entry{
				ParentID: r.ParentID,
				Snapshot: snapshot.FromCalculation(r.Calculation),
			})
		}
		return res, nil
	}

	wctx, stage := pass.Start(ctx, "write")
	err = writeAll(wctx, sink, rebuilt, res, pass)
	stage.End(wctx, err)
	if err != nil {
		return nil, err
	}
	debug.Logf("wrote %d snapshots\n", res.Written)
	return res, nil
}

// Migrate runs one pass over the legacy tables named by layout, reading and
// writing through q.
func Migrate(ctx context.Context, q storage.Querier, dialect storage.Dialect, layout Layout, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	store, err := NewSQLStore(q, dialect, layout)
	if err != nil {
		return nil, err
	}
	store.warnf = opts.Warnf
	return Run(ctx, store, store, opts)
}

func writeAll(ctx context.Context, sink Sink, rebuilt []Reconstructed, res *Result, pass *telemetry.Pass) error {
	for _, r := range rebuilt {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := snapshot.Marshal(r.Calculation)
		if err != nil {
			return err
		}
		if err := sink.WriteSnapshot(ctx, r.ParentID, doc); err != nil {
			return err
		}
		res.Written++
		pass.AddWrites(ctx, 1)
	}
	return nil
}
