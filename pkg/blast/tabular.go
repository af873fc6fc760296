package blast

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yumyai/genevalidator/pkg/model"
)

// DefaultColumns is the -outfmt "6 ..." column list expected when none is configured.
const DefaultColumns = "qseqid sseqid sacc slen qstart qend sstart send length pident evalue qframe"

var requiredColumns = []string{"qseqid", "sseqid", "slen", "qstart", "qend", "sstart", "send", "pident"}

type tabularRow struct {
	qseqid string
	sseqid string
	sacc   string
	stitle string
	slen   int
	hsp    *model.Hsp
}

// TabularIterator reads tab separated BLAST output. Rows of one query are
// contiguous; a query without hits has no rows at all.
type TabularIterator struct {
	sc      *bufio.Scanner
	closer  io.Closer
	columns []string
	hitType model.SeqType
	pending *tabularRow
	line    int
}

var _ HitIterator = (*TabularIterator)(nil)

// NewTabularIterator reads rows laid out as columns (space separated BLAST
// field names, DefaultColumns when empty).
func NewTabularIterator(r io.Reader, columns string, hitType model.SeqType) (*TabularIterator, error) {
	if strings.TrimSpace(columns) == "" {
		columns = DefaultColumns
	}
	cols := strings.Fields(columns)
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c] = true
	}
	for _, c := range requiredColumns {
		if !present[c] {
			return nil, fmt.Errorf("tabular blast output needs column %q", c)
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024) // qseq/sseq columns can be long
	return &TabularIterator{sc: sc, columns: cols, hitType: hitType}, nil
}

func OpenTabular(path, columns string, hitType model.SeqType) (*TabularIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blast tabular: %w", err)
	}
	it, err := NewTabularIterator(f, columns, hitType)
	if err != nil {
		f.Close()
		return nil, err
	}
	it.closer = f
	return it, nil
}

func (it *TabularIterator) Close() error {
	if it.closer == nil {
		return nil
	}
	return it.closer.Close()
}

func (it *TabularIterator) Next(id string) ([]*model.Sequence, error) {
	if it.pending == nil {
		row, err := it.readRow()
		if err == io.EOF && id != "" {
			// Queries without hits have no rows, including the ones after the last row.
			return []*model.Sequence{}, nil
		}
		if err != nil {
			return nil, err
		}
		it.pending = row
	}

	query := it.pending.qseqid
	if id != "" && query != id {
		// Requested query has no rows; leave the pending row for its own query.
		return []*model.Sequence{}, nil
	}

	var hits []*model.Sequence
	byID := make(map[string]*model.Sequence)
	for it.pending != nil && it.pending.qseqid == query {
		row := it.pending
		hit, ok := byID[row.sseqid]
		if !ok {
			hit = &model.Sequence{
				ID:         row.sseqid,
				Accession:  row.sacc,
				Definition: row.stitle,
				Type:       it.hitType,
				Length:     row.slen,
			}
			byID[row.sseqid] = hit
			hits = append(hits, hit)
		}
		hit.Hsps = append(hit.Hsps, row.hsp)

		next, err := it.readRow()
		if err == io.EOF {
			it.pending = nil
			break
		}
		if err != nil {
			return nil, err
		}
		it.pending = next
	}
	return hits, nil
}

func (it *TabularIterator) readRow() (*tabularRow, error) {
	for it.sc.Scan() {
		it.line++
		line := strings.TrimRight(it.sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(it.columns) {
			return nil, fmt.Errorf("blast tabular line %d: %d fields, expected %d", it.line, len(fields), len(it.columns))
		}
		row, err := it.parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("blast tabular line %d: %w", it.line, err)
		}
		return row, nil
	}
	if err := it.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (it *TabularIterator) parseRow(fields []string) (*tabularRow, error) {
	row := &tabularRow{hsp: &model.Hsp{}}
	var err error
	for i, col := range it.columns {
		v := strings.TrimSpace(fields[i])
		switch col {
		case "qseqid":
			row.qseqid = v
		case "sseqid":
			row.sseqid = v
		case "sacc":
			row.sacc = v
		case "stitle", "salltitles":
			row.stitle = v
		case "slen":
			row.slen, err = atoi(v)
		case "qstart":
			row.hsp.QueryFrom, err = atoi(v)
		case "qend":
			row.hsp.QueryTo, err = atoi(v)
		case "sstart":
			row.hsp.HitFrom, err = atoi(v)
		case "send":
			row.hsp.HitTo, err = atoi(v)
		case "length":
			row.hsp.AlignLen, err = atoi(v)
		case "qframe":
			row.hsp.QueryFrame, err = atoi(v)
		case "sframe":
			row.hsp.HitFrame, err = atoi(v)
		case "pident":
			row.hsp.Identity, err = atof(v)
		case "evalue":
			row.hsp.EValue, err = atof(v)
		case "bitscore":
			row.hsp.BitScore, err = atof(v)
		case "qseq":
			row.hsp.QueryAlignment = v
		case "sseq":
			row.hsp.HitAlignment = v
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
	}
	return row, nil
}

// BLAST writes "*" or "N/A" for missing values.
func atoi(s string) (int, error) {
	if s == "*" || s == "N/A" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func atof(s string) (float64, error) {
	if s == "*" || s == "N/A" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
