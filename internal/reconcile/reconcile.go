// Package reconcile merges many per-fetch tables of one entity type into a
// canonical table holding exactly one record per dedup key.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"trackman-importer/internal/domain"

	"github.com/rs/zerolog"
)

// Candidate is one of several records sharing a key. Index is the row's
// position in the concatenated working table.
type Candidate struct {
	Index  int
	Record domain.Record
	Kept   bool
}

// Collision lists every record that shared Key, in preference order. The
// first candidate is the retained one.
type Collision struct {
	Key        string
	Candidates []Candidate
}

func (c Collision) Kept() Candidate {
	return c.Candidates[0]
}

type Result struct {
	Table      *domain.Table
	Collisions []Collision
	Before     int
	After      int
	Skipped    bool
	SkipReason string
}

func (r Result) Removed() int {
	return r.Before - r.After
}

// Merge concatenates tables and collapses records sharing a policy key. The
// output keeps the position of each key's first appearance, so reconciling an
// already unique table returns it unchanged. When the table lacks any key
// column the concatenation is returned as is.
func Merge(policy Policy, tables ...*domain.Table) Result {
	work := domain.Concat(tables...)
	res := Result{Before: work.Len()}

	if cols := policy.KeyColumns(); !work.HasColumns(cols...) {
		res.Table = work
		res.After = work.Len()
		res.Skipped = true
		res.SkipReason = fmt.Sprintf("missing key columns %s", strings.Join(missing(work, cols), ", "))
		return res
	}

	type bucket struct {
		key  string
		rows []int
	}
	var order []*bucket
	byKey := make(map[string]*bucket)

	for i, row := range work.Rows {
		key, ok := policy.Key(row)
		if !ok {
			// keyless rows never collide
			order = append(order, &bucket{rows: []int{i}})
			continue
		}
		b, seen := byKey[key]
		if !seen {
			b = &bucket{key: key}
			byKey[key] = b
			order = append(order, b)
		}
		b.rows = append(b.rows, i)
	}

	out := &domain.Table{}
	for _, c := range work.Columns {
		out.AddColumn(c)
	}

	for _, b := range order {
		if len(b.rows) > 1 {
			sort.SliceStable(b.rows, func(i, j int) bool {
				return policy.Prefer(work.Rows[b.rows[i]], work.Rows[b.rows[j]])
			})
			col := Collision{Key: b.key}
			for n, idx := range b.rows {
				col.Candidates = append(col.Candidates, Candidate{Index: idx, Record: work.Rows[idx], Kept: n == 0})
			}
			res.Collisions = append(res.Collisions, col)
		}
		out.Rows = append(out.Rows, work.Rows[b.rows[0]])
	}

	res.Table = out
	res.After = out.Len()
	return res
}

func missing(t *domain.Table, cols []string) []string {
	var out []string
	for _, c := range cols {
		if !t.HasColumns(c) {
			out = append(out, c)
		}
	}
	return out
}

// Reconciler runs Merge with the collection's policy and logs the outcome,
// including every collision and which candidate was kept.
type Reconciler struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

func (r *Reconciler) Reconcile(c domain.Collection, tables ...*domain.Table) Result {
	policy := PolicyFor(c)
	res := Merge(policy, tables...)
	res.Table.Columns = domain.SchemaFor(c).Order(res.Table.Columns)

	if res.Skipped {
		r.logger.Warn().
			Str("collection", c.Name()).
			Str("reason", res.SkipReason).
			Int("rows", res.Before).
			Msg("skipping deduplication")
		return res
	}

	if len(res.Collisions) > 0 {
		r.logger.Info().
			Str("collection", c.Name()).
			Int("duplicate_keys", len(res.Collisions)).
			Msg("found duplicate records")
	}
	for _, col := range res.Collisions {
		for n, cand := range col.Candidates {
			ev := r.logger.Info().
				Str("collection", c.Name()).
				Str("key", col.Key).
				Int("candidate", n+1).
				Int("of", len(col.Candidates)).
				Bool("kept", cand.Kept)
			for _, f := range policy.SummaryFields() {
				if v, ok := cand.Record.Value(f); ok {
					ev = ev.Str(f, v)
				}
			}
			ev.Msg("duplicate candidate")
		}
	}

	r.logger.Info().
		Str("collection", c.Name()).
		Int("before", res.Before).
		Int("after", res.After).
		Int("removed", res.Removed()).
		Msg("reconciled collection")
	return res
}
