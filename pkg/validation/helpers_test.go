package validation

import (
	"context"
	"strings"

	"github.com/yumyai/genevalidator/pkg/model"
)

func protein(id string, length int) *model.Sequence {
	return &model.Sequence{ID: id, Type: model.Protein, Length: length}
}

// hitsWithLengths builds protein hits, each with one HSP covering the whole hit.
func hitsWithLengths(lengths ...int) []*model.Sequence {
	hits := make([]*model.Sequence, len(lengths))
	for i, l := range lengths {
		h := protein("hit"+string(rune('A'+i)), l)
		h.Hsps = []*model.Hsp{{HitFrom: 1, HitTo: l, QueryFrom: 1, QueryTo: l, Identity: 60}}
		hits[i] = h
	}
	return hits
}

func nucleotide(id, residues string) *model.Sequence {
	return &model.Sequence{ID: id, Type: model.Nucleotide, Length: len(residues), RawSequence: residues}
}

type fakeAligner struct {
	rows  []string
	err   error
	calls int
	got   []string
}

func (f *fakeAligner) Align(_ context.Context, seqs []string) ([]string, error) {
	f.calls++
	f.got = seqs
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeFetcher struct {
	seqs map[string]string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, accession string, _ model.SeqType) (string, error) {
	if s, ok := f.seqs[accession]; ok {
		return s, nil
	}
	return "", f.err
}

type fakeStat struct {
	p      float64
	calls  int
	values []float64
}

func (f *fakeStat) WilcoxonSignedRank(values []float64, _ float64) (float64, error) {
	f.calls++
	f.values = values
	return f.p, nil
}

func repeat(unit string, n int) string {
	return strings.Repeat(unit, n)
}
