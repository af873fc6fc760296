package db

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/yumyai/genevalidator/pkg/model"
)

var ErrEmptyInput = errors.New("input file contains no FASTA records")

type queryEntry struct {
	id     string
	offset int64
	size   int64
}

// QueryIndex maps each prediction of a FASTA file to its byte range so any
// record can be read without holding a lock. Reads go through ReadAt.
type QueryIndex struct {
	file    *os.File
	entries []queryEntry
	byID    map[string]int
}

// BuildQueryIndex scans path once and records where every record starts.
func BuildQueryIndex(path string) (*QueryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	idx := &QueryIndex{file: f, byID: make(map[string]int)}
	r := bufio.NewReader(f)
	var offset int64
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 && line[0] == '>' {
			if n := len(idx.entries); n > 0 {
				idx.entries[n-1].size = offset - idx.entries[n-1].offset
			}
			id := headerID(line)
			if _, dup := idx.byID[id]; !dup {
				idx.byID[id] = len(idx.entries)
			}
			idx.entries = append(idx.entries, queryEntry{id: id, offset: offset})
		}
		offset += int64(len(line))
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("scan input: %w", err)
		}
	}
	if len(idx.entries) == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, path)
	}
	last := &idx.entries[len(idx.entries)-1]
	last.size = offset - last.offset
	return idx, nil
}

func headerID(line string) string {
	fields := strings.Fields(strings.TrimPrefix(line, ">"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (q *QueryIndex) Len() int {
	return len(q.entries)
}

// ID returns the identifier of the i-th record.
func (q *QueryIndex) ID(i int) string {
	return q.entries[i].id
}

// Lookup returns the position of the first record named id.
func (q *QueryIndex) Lookup(id string) (int, bool) {
	i, ok := q.byID[id]
	return i, ok
}

// Read parses the i-th record. Safe for concurrent use.
func (q *QueryIndex) Read(i int) (*model.Sequence, error) {
	if i < 0 || i >= len(q.entries) {
		return nil, fmt.Errorf("query index %d out of range [0,%d)", i, len(q.entries))
	}
	e := q.entries[i]
	seqs, err := ParseFasta(io.NewSectionReader(q.file, e.offset, e.size))
	if err != nil {
		return nil, fmt.Errorf("read query %s: %w", e.id, err)
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("read query %s: empty record", e.id)
	}
	return seqs[0], nil
}

func (q *QueryIndex) Close() error {
	return q.file.Close()
}

// ParseFasta reads every record in r. The sequence type is guessed from the residues.
func ParseFasta(r io.Reader) ([]*model.Sequence, error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.Protein)))
	var out []*model.Sequence
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type %T", sc.Seq())
		}
		raw := strings.ToUpper(string(alphabet.LettersToBytes(s.Seq)))
		def := s.Name()
		if desc := s.Description(); desc != "" {
			def += " " + desc
		}
		out = append(out, &model.Sequence{
			ID:          s.Name(),
			Definition:  def,
			Type:        model.GuessType(raw),
			Length:      len(raw),
			RawSequence: raw,
		})
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
