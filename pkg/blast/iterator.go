// Package blast reads BLAST hit records, one query at a time.
package blast

import (
	"errors"
	"strings"

	"github.com/yumyai/genevalidator/pkg/model"
)

// ErrQueryMismatch means the hit records are not in the same order as the queries.
var ErrQueryMismatch = errors.New("hit records do not belong to the requested query")

// HitIterator yields the hits of successive queries. Next returns io.EOF when
// the stream is exhausted. A non-empty id names the query the caller expects;
// formats that omit queries without hits return an empty list for it instead
// of io.EOF.
type HitIterator interface {
	Next(id string) ([]*model.Sequence, error)
}

// HitTypeForProgram maps a BLAST program name onto the type of its subject sequences.
func HitTypeForProgram(program string) model.SeqType {
	switch strings.ToLower(strings.TrimSpace(program)) {
	case "blastn", "tblastn", "tblastx":
		return model.Nucleotide
	default:
		return model.Protein
	}
}

// QueryID is the first word of a FASTA definition line.
func QueryID(definition string) string {
	fields := strings.Fields(definition)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[0], ">")
}
