package blast

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/yumyai/genevalidator/pkg/model"
)

type xmlHsp struct {
	BitScore   float64 `xml:"Hsp_bit-score"`
	EValue     float64 `xml:"Hsp_evalue"`
	QueryFrom  int     `xml:"Hsp_query-from"`
	QueryTo    int     `xml:"Hsp_query-to"`
	HitFrom    int     `xml:"Hsp_hit-from"`
	HitTo      int     `xml:"Hsp_hit-to"`
	QueryFrame int     `xml:"Hsp_query-frame"`
	HitFrame   int     `xml:"Hsp_hit-frame"`
	Identity   int     `xml:"Hsp_identity"`
	AlignLen   int     `xml:"Hsp_align-len"`
	QSeq       string  `xml:"Hsp_qseq"`
	HSeq       string  `xml:"Hsp_hseq"`
}

type xmlHit struct {
	ID        string   `xml:"Hit_id"`
	Def       string   `xml:"Hit_def"`
	Accession string   `xml:"Hit_accession"`
	Len       int      `xml:"Hit_len"`
	Hsps      []xmlHsp `xml:"Hit_hsps>Hsp"`
}

type xmlIteration struct {
	QueryID  string   `xml:"Iteration_query-ID"`
	QueryDef string   `xml:"Iteration_query-def"`
	QueryLen int      `xml:"Iteration_query-len"`
	Hits     []xmlHit `xml:"Iteration_hits>Hit"`
}

// XMLIterator streams BLAST XML (-outfmt 5), decoding one <Iteration> per call.
type XMLIterator struct {
	dec     *xml.Decoder
	closer  io.Closer
	hitType model.SeqType
}

var _ HitIterator = (*XMLIterator)(nil)

func NewXMLIterator(r io.Reader) *XMLIterator {
	return &XMLIterator{dec: xml.NewDecoder(r), hitType: model.Protein}
}

func OpenXML(path string) (*XMLIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blast xml: %w", err)
	}
	it := NewXMLIterator(f)
	it.closer = f
	return it, nil
}

func (it *XMLIterator) Close() error {
	if it.closer == nil {
		return nil
	}
	return it.closer.Close()
}

func (it *XMLIterator) Next(id string) ([]*model.Sequence, error) {
	for {
		tok, err := it.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("malformed blast xml: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "BlastOutput_program":
			var program string
			if err := it.dec.DecodeElement(&program, &se); err != nil {
				return nil, fmt.Errorf("malformed blast xml: %w", err)
			}
			it.hitType = HitTypeForProgram(program)
		case "Iteration":
			var iter xmlIteration
			if err := it.dec.DecodeElement(&iter, &se); err != nil {
				return nil, fmt.Errorf("malformed blast xml: %w", err)
			}
			if id != "" && QueryID(iter.QueryDef) != id && iter.QueryID != id {
				return nil, fmt.Errorf("%w: expected %s, found %s", ErrQueryMismatch, id, QueryID(iter.QueryDef))
			}
			return it.convert(iter), nil
		}
	}
}

func (it *XMLIterator) convert(iter xmlIteration) []*model.Sequence {
	hits := make([]*model.Sequence, 0, len(iter.Hits))
	for _, h := range iter.Hits {
		hit := &model.Sequence{
			ID:         h.ID,
			Accession:  h.Accession,
			Definition: h.Def,
			Type:       it.hitType,
			Length:     h.Len,
		}
		for _, x := range h.Hsps {
			identity := 0.0
			if x.AlignLen > 0 {
				identity = 100 * float64(x.Identity) / float64(x.AlignLen)
			}
			hit.Hsps = append(hit.Hsps, &model.Hsp{
				HitFrom:        x.HitFrom,
				HitTo:          x.HitTo,
				QueryFrom:      x.QueryFrom,
				QueryTo:        x.QueryTo,
				QueryFrame:     x.QueryFrame,
				HitFrame:       x.HitFrame,
				Identity:       identity,
				EValue:         x.EValue,
				BitScore:       x.BitScore,
				AlignLen:       x.AlignLen,
				QueryAlignment: x.QSeq,
				HitAlignment:   x.HSeq,
			})
		}
		hits = append(hits, hit)
	}
	return hits
}
