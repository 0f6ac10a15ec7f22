package reconcile

import (
	"testing"
	"trackman-importer/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shot(id, captured string, extra ...string) domain.Record {
	r := domain.Record{domain.FieldStrokeID: id}
	r.Set(domain.FieldStrokeTime, captured)
	for i := 0; i+1 < len(extra); i += 2 {
		r[extra[i]] = extra[i+1]
	}
	return r
}

func group(date, club, player, strokes string) domain.Record {
	r := domain.Record{}
	r.Set(domain.FieldDate, date)
	r.Set(domain.FieldClub, club)
	r.Set(domain.FieldPlayerName, player)
	r.Set(domain.FieldNumStrokes, strokes)
	return r
}

func keysOf(t *testing.T, p Policy, tbl *domain.Table) []string {
	t.Helper()
	var keys []string
	for _, r := range tbl.Rows {
		k, ok := p.Key(r)
		require.True(t, ok)
		keys = append(keys, k)
	}
	return keys
}

func TestMergeKeepsMostRecentShot(t *testing.T) {
	a := domain.NewTable(shot("s-1", "2024-01-01", "report_id", "old"))
	b := domain.NewTable(shot("s-1", "2024-02-01", "report_id", "new"))

	res := Merge(ShotPolicy{}, a, b)

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "new", res.Table.Rows[0][domain.FieldReportID])
	assert.Equal(t, 2, res.Before)
	assert.Equal(t, 1, res.After)
	assert.Equal(t, 1, res.Removed())
}

func TestMergeShotFallsBackToGroupDate(t *testing.T) {
	older := domain.Record{domain.FieldStrokeID: "s-1", domain.FieldGroupDate: "2024-05-01", "v": "older"}
	newer := domain.Record{domain.FieldStrokeID: "s-1", domain.FieldGroupDate: "2024-06-01", "v": "newer"}
	undated := domain.Record{domain.FieldStrokeID: "s-1", "v": "undated"}

	res := Merge(ShotPolicy{}, domain.NewTable(undated, older, newer))

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "newer", res.Table.Rows[0]["v"])
	require.Len(t, res.Collisions, 1)
	got := []string{}
	for _, c := range res.Collisions[0].Candidates {
		got = append(got, c.Record["v"])
	}
	assert.Equal(t, []string{"newer", "older", "undated"}, got)
}

func TestMergeKeepsLargestGroup(t *testing.T) {
	p := GroupPolicy{TargetField: domain.FieldClub}
	small := group("2024-03-01", "7Iron", "Alex", "5")
	large := group("2024-03-01", "7Iron", "Alex", "12")

	res := Merge(p, domain.NewTable(small), domain.NewTable(large))

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "12", res.Table.Rows[0][domain.FieldNumStrokes])
}

func TestMergeReportsCollisions(t *testing.T) {
	p := GroupPolicy{TargetField: domain.FieldClub}
	rows := []domain.Record{
		group("2024-03-01", "7Iron", "Alex", "5"),
		group("2024-03-01", "Driver", "Alex", "9"),
		group("2024-03-01", "7Iron", "Alex", "12"),
		group("2024-03-01", "7Iron", "Alex", "8"),
	}

	res := Merge(p, domain.NewTable(rows...))

	require.Len(t, res.Collisions, 1)
	col := res.Collisions[0]
	assert.Equal(t, "2024-03-01_7Iron_Alex", col.Key)
	require.Len(t, col.Candidates, 3)
	assert.Equal(t, 2, col.Kept().Index)
	assert.True(t, col.Candidates[0].Kept)
	assert.False(t, col.Candidates[1].Kept)
	assert.False(t, col.Candidates[2].Kept)
	assert.Equal(t, "8", col.Candidates[1].Record[domain.FieldNumStrokes])
	assert.Equal(t, "5", col.Candidates[2].Record[domain.FieldNumStrokes])
	assert.Equal(t, 2, res.Removed())
}

func TestMergeUniqueness(t *testing.T) {
	rows := []domain.Record{
		shot("a", "2024-01-01"), shot("b", "2024-01-01"), shot("a", "2024-01-03"),
		shot("c", ""), shot("b", "2024-01-02"), shot("a", "2024-01-02"),
	}
	res := Merge(ShotPolicy{}, domain.NewTable(rows...))

	keys := keysOf(t, ShotPolicy{}, res.Table)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, "2024-01-03", res.Table.Rows[0][domain.FieldStrokeTime])
	assert.Equal(t, "2024-01-02", res.Table.Rows[1][domain.FieldStrokeTime])
}

func TestMergeCompleteness(t *testing.T) {
	unique := shot("u-1", "2024-01-01", "Measurement_ClubSpeed", "40")
	rows := []domain.Record{shot("d", "2024-01-01"), unique, shot("d", "2024-01-05")}

	res := Merge(ShotPolicy{}, domain.NewTable(rows...))

	require.Equal(t, 2, res.Table.Len())
	assert.Contains(t, res.Table.Rows, unique)
}

func TestMergeIsIdempotent(t *testing.T) {
	rows := []domain.Record{
		shot("a", "2024-01-01", "x", "1"),
		shot("b", "2024-01-02", "y", "2"),
		shot("a", "2024-01-04"),
	}
	first := Merge(ShotPolicy{}, domain.NewTable(rows...))
	second := Merge(ShotPolicy{}, first.Table)

	assert.Equal(t, 0, second.Removed())
	assert.Empty(t, second.Collisions)
	if diff := cmp.Diff(first.Table.Rows, second.Table.Rows); diff != "" {
		t.Errorf("second pass changed rows (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Table.Columns, second.Table.Columns, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("second pass changed columns:\n%s", diff)
	}
}

func TestMergeSparseColumnUnion(t *testing.T) {
	a := domain.NewTable(domain.Record{domain.FieldStrokeID: "1", "speed": "40"})
	b := domain.NewTable(domain.Record{domain.FieldStrokeID: "2", "spin": "3000"})

	res := Merge(ShotPolicy{}, a, b)

	assert.ElementsMatch(t, []string{domain.FieldStrokeID, "speed", "spin"}, res.Table.Columns)
	require.Equal(t, 2, res.Table.Len())
	_, ok := res.Table.Rows[0].Value("spin")
	assert.False(t, ok)
	_, ok = res.Table.Rows[1].Value("speed")
	assert.False(t, ok)
}

func TestMergeSkipsWithoutKeyColumn(t *testing.T) {
	a := domain.NewTable(domain.Record{"speed": "40"}, domain.Record{"speed": "40"})
	b := domain.NewTable(domain.Record{"spin": "1"})

	res := Merge(ShotPolicy{}, a, b)

	assert.True(t, res.Skipped)
	assert.Contains(t, res.SkipReason, domain.FieldStrokeID)
	assert.Equal(t, 3, res.Table.Len())
	assert.Equal(t, 0, res.Removed())
}

func TestMergeSkipsGroupsWithoutFullKey(t *testing.T) {
	p := GroupPolicy{TargetField: domain.FieldTarget}
	rows := []domain.Record{
		{domain.FieldDate: "2024-01-01", domain.FieldPlayerName: "Sam", domain.FieldNumStrokes: "3"},
		{domain.FieldDate: "2024-01-01", domain.FieldPlayerName: "Sam", domain.FieldNumStrokes: "4"},
	}
	res := Merge(p, domain.NewTable(rows...))

	assert.True(t, res.Skipped)
	assert.Equal(t, 2, res.Table.Len())
}

func TestMergeKeylessRowsNeverCollide(t *testing.T) {
	rows := []domain.Record{
		shot("a", "2024-01-01"),
		{domain.FieldStrokeTime: "2024-01-01"},
		{domain.FieldStrokeTime: "2024-01-02"},
	}
	res := Merge(ShotPolicy{}, domain.NewTable(rows...))
	assert.Equal(t, 3, res.Table.Len())
	assert.Empty(t, res.Collisions)
}

func TestReconcilerOrdersKnownColumnsFirst(t *testing.T) {
	r := New(zerolog.Nop())
	tbl := domain.NewTable(domain.Record{
		"Measurement_ClubSpeed": "41",
		domain.FieldStrokeID:    "s-1",
		domain.FieldGroupDate:   "2024-01-01",
	})

	res := r.Reconcile(domain.RegularShots, tbl)

	assert.Equal(t, []string{domain.FieldGroupDate, domain.FieldStrokeID, "Measurement_ClubSpeed"}, res.Table.Columns)
}

func TestNewer(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2024-02-01", "2024-01-01", true},
		{"2024-01-01", "2024-02-01", false},
		{"2024-01-01T10:00:00Z", "2024-01-01", true},
		{"2024-01-01", "", true},
		{"", "2024-01-01", false},
		{"", "", false},
		{"b-unparsed", "a-unparsed", true},
		{"2024-01-01", "zzz", true},
		{"zzz", "2024-01-01", false},
		{"zzz", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newer(tt.a, tt.b), "newer(%q, %q)", tt.a, tt.b)
	}
}

func TestShotPolicyOrdersMixedTimestamps(t *testing.T) {
	rec := func(v, ts string) domain.Record {
		return domain.Record{domain.FieldStrokeID: "s-1", domain.FieldStrokeTime: ts, "v": v}
	}
	res := Merge(ShotPolicy{}, domain.NewTable(
		rec("bad", "3000-bad"),
		rec("old", "2024-01-01T00:00:00Z"),
		rec("none", ""),
		rec("new", "2024-06-01T00:00:00Z"),
		rec("bad-early", "1000-bad"),
	))

	require.Len(t, res.Collisions, 1)
	var got []string
	for _, c := range res.Collisions[0].Candidates {
		got = append(got, c.Record["v"])
	}
	assert.Equal(t, []string{"new", "old", "bad", "bad-early", "none"}, got)
	assert.Equal(t, "new", res.Table.Rows[0]["v"])
}
