package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessType(t *testing.T) {
	tests := []struct {
		name     string
		residues string
		expected SeqType
	}{
		{"dna", "ATGGCGTTAACGTAG", Nucleotide},
		{"rna lower case", "augccguuaa", Nucleotide},
		{"protein", "MKVLAAGIWRRSTPLE", Protein},
		{"empty", "", Protein},
		{"mostly dna with ambiguity", "ACGTACGTNNACGTACGTAR", Nucleotide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GuessType(tt.residues))
		})
	}
}

func TestProteinLength(t *testing.T) {
	nucl := &Sequence{Type: Nucleotide, Length: 301}
	prot := &Sequence{Type: Protein, Length: 301}
	assert.Equal(t, 100, nucl.ProteinLength())
	assert.Equal(t, 301, prot.ProteinLength())
}

func TestQueryFramesAndRanges(t *testing.T) {
	s := &Sequence{Hsps: []*Hsp{
		{QueryFrom: 30, QueryTo: 10, QueryFrame: -1, HitFrom: 5, HitTo: 1},
		{QueryFrom: 40, QueryTo: 60, QueryFrame: 2},
		{QueryFrom: 70, QueryTo: 90, QueryFrame: -1},
	}}
	assert.Equal(t, []int{-1, 2}, s.QueryFrames())

	from, to := s.Hsps[0].QueryRange()
	assert.Equal(t, 10, from)
	assert.Equal(t, 30, to)
	from, to = s.Hsps[0].HitRange()
	assert.Equal(t, 1, from)
	assert.Equal(t, 5, to)
}

func TestFetchKeyPrefersAccession(t *testing.T) {
	assert.Equal(t, "XP_001", (&Sequence{ID: "gi|1|ref|XP_001|", Accession: "XP_001"}).FetchKey())
	assert.Equal(t, "sp|P1", (&Sequence{ID: "sp|P1"}).FetchKey())
}

func TestParseSeqType(t *testing.T) {
	st, err := ParseSeqType("DNA")
	require.NoError(t, err)
	assert.Equal(t, Nucleotide, st)

	_, err = ParseSeqType("rna-ish")
	assert.Error(t, err)
}

func TestReportJSONUsesNames(t *testing.T) {
	r := &Report{Kind: KindGeneMerge, Result: ResultNo, Expected: ResultNo, Errors: []ErrorTag{TagAlignerUnavailable}}
	r.SetValue("slope", 0.5)
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"kind":"gene_merge"`)
	assert.Contains(t, body, `"result":"no"`)
	assert.Contains(t, body, `"errors":["AlignerUnavailable"]`)
	assert.True(t, r.Applicable())
	assert.True(t, r.Passed())
}

func TestOutputReportLookup(t *testing.T) {
	o := &Output{Reports: []*Report{{Kind: KindORF}, {Kind: KindLengthRank}}}
	require.NotNil(t, o.Report(KindLengthRank))
	assert.Nil(t, o.Report(KindDuplication))
}

func TestSetValueDropsNonFinite(t *testing.T) {
	r := &Report{}
	r.SetValue("slope", math.NaN())
	r.SetValue("ratio", math.Inf(1))
	assert.Nil(t, r.Values)

	r.SetValue("median", 12.5)
	assert.Equal(t, map[string]float64{"median": 12.5}, r.Values)

	_, err := json.Marshal(r)
	require.NoError(t, err)
}
