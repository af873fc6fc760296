// Sequence records for predictions and BLAST hits

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type SeqType int

const (
	Protein SeqType = iota
	Nucleotide
)

func (t SeqType) String() string {
	switch t {
	case Nucleotide:
		return "nucleotide"
	default:
		return "protein"
	}
}

func (t SeqType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// ParseSeqType accepts the names used by BLAST programs and config files.
func ParseSeqType(raw string) (SeqType, error) {
	switch strings.ToLower(raw) {
	case "protein", "prot", "aa":
		return Protein, nil
	case "nucleotide", "nucl", "dna", "nt":
		return Nucleotide, nil
	default:
		return Protein, fmt.Errorf("unknown sequence type %q", raw)
	}
}

// Hsp is one local alignment between the prediction and a hit.
// Coordinates are 1-based and inclusive, as reported by BLAST.
type Hsp struct {
	HitFrom        int     `json:"hit_from"`
	HitTo          int     `json:"hit_to"`
	QueryFrom      int     `json:"query_from"`
	QueryTo        int     `json:"query_to"`
	QueryFrame     int     `json:"query_frame"`
	HitFrame       int     `json:"hit_frame"`
	Identity       float64 `json:"identity"` // percent
	EValue         float64 `json:"evalue"`
	BitScore       float64 `json:"bit_score"`
	AlignLen       int     `json:"align_len"`
	QueryAlignment string  `json:"query_alignment,omitempty"`
	HitAlignment   string  `json:"hit_alignment,omitempty"`
}

// QueryRange returns the query coordinates ordered low to high.
func (h *Hsp) QueryRange() (int, int) {
	if h.QueryFrom <= h.QueryTo {
		return h.QueryFrom, h.QueryTo
	}
	return h.QueryTo, h.QueryFrom
}

// HitRange returns the hit coordinates ordered low to high.
func (h *Hsp) HitRange() (int, int) {
	if h.HitFrom <= h.HitTo {
		return h.HitFrom, h.HitTo
	}
	return h.HitTo, h.HitFrom
}

type Sequence struct {
	ID           string  `json:"id"`
	Accession    string  `json:"accession,omitempty"`
	Definition   string  `json:"definition"`
	Type         SeqType `json:"type"`
	Length       int     `json:"length"`
	RawSequence  string  `json:"-"`
	Hsps         []*Hsp  `json:"hsps,omitempty"`
	ReadingFrame int     `json:"reading_frame,omitempty"`
}

// ProteinLength is the length in amino acids. Nucleotide lengths are divided by three.
func (s *Sequence) ProteinLength() int {
	if s.Type == Nucleotide {
		return s.Length / 3
	}
	return s.Length
}

func (s *Sequence) HasRaw() bool {
	return s.RawSequence != ""
}

// FetchKey is the identifier used to look the sequence up in a database.
func (s *Sequence) FetchKey() string {
	if s.Accession != "" {
		return s.Accession
	}
	return s.ID
}

// QueryFrames lists the distinct query reading frames of the HSPs in first-seen order.
func (s *Sequence) QueryFrames() []int {
	var frames []int
	seen := make(map[int]bool)
	for _, hsp := range s.Hsps {
		if !seen[hsp.QueryFrame] {
			seen[hsp.QueryFrame] = true
			frames = append(frames, hsp.QueryFrame)
		}
	}
	return frames
}

// GuessType calls a sequence nucleotide when at least 90% of its letters are ACGTUN.
func GuessType(residues string) SeqType {
	var letters, nucl int
	for i := 0; i < len(residues); i++ {
		c := residues[i] | 0x20 // lower case
		if c < 'a' || c > 'z' {
			continue
		}
		letters++
		switch c {
		case 'a', 'c', 'g', 't', 'u', 'n':
			nucl++
		}
	}
	if letters > 0 && float64(nucl) >= 0.9*float64(letters) {
		return Nucleotide
	}
	return Protein
}
