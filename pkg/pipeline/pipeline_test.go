package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/genevalidator/pkg/blast"
	"github.com/yumyai/genevalidator/pkg/model"
	"github.com/yumyai/genevalidator/pkg/validation"
)

type stubTest struct {
	alias    string
	kind     model.ReportKind
	result   model.Result
	expected model.Result
	err      error
	panics   bool
	wrong    bool // report of another kind
}

func (s *stubTest) Alias() string          { return s.alias }
func (s *stubTest) Kind() model.ReportKind { return s.kind }

func (s *stubTest) Run(_ context.Context, in validation.Input) (*model.Report, error) {
	if s.panics {
		var hits []*model.Sequence
		_ = hits[len(in.Hits)+1]
	}
	kind := s.kind
	if s.wrong {
		kind = model.KindUnknown
	}
	rep := &model.Report{Kind: kind, Result: s.result, Expected: s.expected}
	return rep, s.err
}

type sliceQueries []*model.Sequence

func (q sliceQueries) Len() int        { return len(q) }
func (q sliceQueries) ID(i int) string { return q[i].ID }
func (q sliceQueries) Read(i int) (*model.Sequence, error) {
	s := *q[i]
	return &s, nil
}

// orderedHits hands out hits and records the order in which queries asked.
type orderedHits struct {
	mu    sync.Mutex
	hits  map[string][]*model.Sequence
	limit int // EOF after this many calls when > 0
	err   error
	asked []string
}

func (o *orderedHits) Next(id string) ([]*model.Sequence, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.limit > 0 && len(o.asked) >= o.limit {
		return nil, io.EOF
	}
	o.asked = append(o.asked, id)
	if o.err != nil {
		return nil, o.err
	}
	return o.hits[id], nil
}

type memorySink struct {
	mu   sync.Mutex
	outs []*model.Output
}

func (m *memorySink) SaveOutput(_ context.Context, out *model.Output) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outs = append(m.outs, out)
	return nil
}

func (m *memorySink) sorted() []*model.Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*model.Output(nil), m.outs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func fixture(n int) (sliceQueries, map[string][]*model.Sequence) {
	queries := make(sliceQueries, n)
	hits := make(map[string][]*model.Sequence, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("q%03d", i)
		queries[i] = &model.Sequence{ID: id, Type: model.Protein, Length: 100 + i}
		var hs []*model.Sequence
		for j := 0; j < 6; j++ {
			hs = append(hs, &model.Sequence{
				ID: fmt.Sprintf("%s_h%d", id, j), Type: model.Protein, Length: 100 + (i*j)%40,
				Hsps: []*model.Hsp{{QueryFrom: 1, QueryTo: 90, HitFrom: 1, HitTo: 90, Identity: 70}},
			})
		}
		hits[id] = hs
	}
	return queries, hits
}

func realTests(t *testing.T) []validation.Test {
	t.Helper()
	tests, err := validation.Build([]string{"LengthCluster", "LengthRank", "Merge", "Dup"}, validation.Deps{})
	require.NoError(t, err)
	return tests
}

func TestRunSequentialAndParallelAgree(t *testing.T) {
	queries, hits := fixture(40)

	run := func(threads int) []*model.Output {
		sink := &memorySink{}
		iter := &orderedHits{hits: hits}
		p := New(queries, iter, Options{RunID: "r", Threads: threads, Tests: realTests(t), Sink: sink})
		sum, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 40, sum.Total+sum.NoEvidence)

		// Hit records must be requested in input order whatever the thread count.
		require.Len(t, iter.asked, 40)
		for i, id := range iter.asked {
			assert.Equal(t, queries[i].ID, id)
		}
		return sink.sorted()
	}

	seq := run(1)
	par := run(8)
	require.Equal(t, len(seq), len(par))
	for i := range seq {
		assert.Equal(t, seq[i].QueryID, par[i].QueryID)
		assert.Equal(t, seq[i].Score, par[i].Score)
		assert.Equal(t, seq[i].HitCount, par[i].HitCount)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	queries, hits := fixture(1)
	p := New(queries, &orderedHits{hits: hits}, Options{Tests: realTests(t)})

	first, err := p.Process(context.Background(), 0, queries[0], hits[queries[0].ID])
	require.NoError(t, err)
	second, err := p.Process(context.Background(), 0, queries[0], hits[queries[0].ID])
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	for i := range first.Reports {
		assert.Equal(t, first.Reports[i].Result, second.Reports[i].Result)
		assert.Equal(t, first.Reports[i].Values, second.Reports[i].Values)
	}
	assert.Equal(t, 2, p.Stats().Snapshot().Total)
}

func TestRunStopsAtEndOfHitStream(t *testing.T) {
	queries, hits := fixture(5)
	sink := &memorySink{}
	p := New(queries, &orderedHits{hits: hits, limit: 2}, Options{Threads: 3, Tests: realTests(t), Sink: sink})
	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total+sum.NoEvidence)
	assert.Len(t, sink.sorted(), sum.Total)
}

func TestRunFailsOnBrokenHitStream(t *testing.T) {
	queries, hits := fixture(5)
	p := New(queries, &orderedHits{hits: hits, err: errors.New("truncated xml")}, Options{Threads: 2, Tests: realTests(t)})
	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "truncated xml")
}

func TestRunSkipsQueriesWithoutEvidence(t *testing.T) {
	queries, _ := fixture(3)
	sink := &memorySink{}
	// No hits at all: every test warns, so no query can be scored.
	p := New(queries, &orderedHits{hits: map[string][]*model.Sequence{}}, Options{Threads: 2, Tests: realTests(t), Sink: sink})
	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.NoEvidence)
	assert.Equal(t, 0, sum.Total)

	outs := sink.sorted()
	require.Len(t, outs, 3)
	for i, out := range outs {
		assert.Equal(t, queries[i].ID, out.QueryID)
		assert.True(t, out.NoEvidence)
		assert.Equal(t, 0, out.Score)
		assert.Len(t, out.Reports, 4)
	}
}

// Tabular output has no rows for queries without hits, even after the last row.
func TestRunReachesQueriesAfterLastHitRow(t *testing.T) {
	queries := sliceQueries{
		{ID: "A", Type: model.Nucleotide, Length: 300},
		{ID: "B", Type: model.Nucleotide, Length: 300},
		{ID: "C", Type: model.Nucleotide, Length: 300},
	}
	rows := "A\ts1\tX1\t100\t1\t300\t1\t100\t100\t80.0\t1e-30\t1\n"
	iter, err := blast.NewTabularIterator(strings.NewReader(rows), "", model.Protein)
	require.NoError(t, err)

	orf := &stubTest{alias: "ORF", kind: model.KindORF, result: model.ResultYes, expected: model.ResultYes}
	sink := &memorySink{}
	p := New(queries, iter, Options{Threads: 1, Tests: []validation.Test{orf}, Sink: sink})

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total+sum.NoEvidence)
	assert.Equal(t, 3, sum.Total)

	outs := sink.sorted()
	require.Len(t, outs, 3)
	assert.Equal(t, 1, outs[0].HitCount)
	assert.Equal(t, 0, outs[1].HitCount)
	assert.Equal(t, "C", outs[2].QueryID)
}

func TestMalformedReportAbortsRun(t *testing.T) {
	queries, hits := fixture(3)
	bad := &stubTest{alias: "Bad", kind: model.KindDuplication, result: model.ResultYes, expected: model.ResultNo, wrong: true}
	p := New(queries, &orderedHits{hits: hits}, Options{Tests: []validation.Test{bad}})
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrMalformedReport)

	noResult := &stubTest{alias: "Odd", kind: model.KindDuplication, result: model.ResultWarning, expected: model.ResultNo}
	p = New(queries, &orderedHits{hits: hits}, Options{Tests: []validation.Test{noResult}})
	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrMalformedReport)
}

func TestPanickingTestBecomesErrorReport(t *testing.T) {
	queries, hits := fixture(1)
	tests := []validation.Test{
		&stubTest{alias: "Boom", kind: model.KindGeneMerge, expected: model.ResultNo, panics: true},
		&stubTest{alias: "Ok", kind: model.KindDuplication, result: model.ResultNo, expected: model.ResultNo},
	}
	p := New(queries, &orderedHits{hits: hits}, Options{Tests: tests})
	out, err := p.Process(context.Background(), 0, queries[0], hits[queries[0].ID])
	require.NoError(t, err)
	require.Len(t, out.Reports, 2)
	assert.Equal(t, model.ResultError, out.Reports[0].Result)
	assert.Equal(t, []model.ErrorTag{model.TagOther}, out.Reports[0].Errors)
	assert.Equal(t, 100, out.Score)
	assert.Equal(t, 1, p.Stats().Snapshot().Errors[model.KindGeneMerge.String()])
}

func TestMetricsFollowOutputs(t *testing.T) {
	queries, hits := fixture(4)
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	tests := []validation.Test{&stubTest{alias: "Ok", kind: model.KindDuplication, result: model.ResultNo, expected: model.ResultNo}}
	p := New(queries, &orderedHits{hits: hits}, Options{Threads: 2, Tests: tests, Metrics: m})
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queries.WithLabelValues("good")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors register once per registry")
}
