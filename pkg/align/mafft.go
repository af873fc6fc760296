// Package align runs multiple sequence alignments through MAFFT.
package align

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/logger"
)

var ErrAlignerUnavailable = errors.New("multiple aligner unavailable")

// Aligner aligns sequences and returns them gapped, in input order.
type Aligner interface {
	Align(ctx context.Context, seqs []string) ([]string, error)
}

// Mafft shells out to `mafft --quiet -` with the sequences on stdin.
type Mafft struct {
	Binary  string
	Threads int
	Timeout time.Duration
}

var _ Aligner = (*Mafft)(nil)

func (m *Mafft) binary() string {
	if m.Binary == "" {
		return "mafft"
	}
	return m.Binary
}

func (m *Mafft) Align(ctx context.Context, seqs []string) ([]string, error) {
	if len(seqs) < 2 {
		return nil, fmt.Errorf("align needs at least two sequences, got %d", len(seqs))
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	var input bytes.Buffer
	w := fasta.NewWriter(&input, 60)
	for i, s := range seqs {
		rec := linear.NewSeq(seqName(i), alphabet.BytesToLetters([]byte(s)), alphabet.Protein)
		if _, err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write mafft input: %w", err)
		}
	}

	args := []string{"--quiet"}
	if m.Threads > 0 {
		args = append(args, "--thread", strconv.Itoa(m.Threads))
	}
	args = append(args, "-")
	cmd := exec.CommandContext(ctx, m.binary(), args...)
	cmd.Stdin = &input
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		logger.Debug("mafft failed", zap.Error(err), zap.String("stderr", strings.TrimSpace(stderr.String())))
		return nil, fmt.Errorf("%w: %v", ErrAlignerUnavailable, err)
	}
	logger.Debug("mafft finished", zap.Int("sequences", len(seqs)), zap.Duration("took", time.Since(start)))

	aligned, err := parseAlignment(output, len(seqs))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlignerUnavailable, err)
	}
	return aligned, nil
}

func seqName(i int) string {
	return "s" + strconv.Itoa(i)
}

// parseAlignment maps the records back to input order by name; MAFFT may reorder them.
func parseAlignment(output []byte, n int) ([]string, error) {
	aligned := make([]string, n)
	seen := 0
	sc := seqio.NewScanner(fasta.NewReader(bytes.NewReader(output), linear.NewSeq("", nil, alphabet.Protein)))
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type %T", sc.Seq())
		}
		i, err := strconv.Atoi(strings.TrimPrefix(s.Name(), "s"))
		if err != nil || i < 0 || i >= n || aligned[i] != "" {
			return nil, fmt.Errorf("unexpected record %q in alignment", s.Name())
		}
		aligned[i] = strings.ToUpper(string(alphabet.LettersToBytes(s.Seq)))
		seen++
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	if seen != n {
		return nil, fmt.Errorf("alignment has %d records, expected %d", seen, n)
	}
	width := len(aligned[0])
	for _, a := range aligned {
		if len(a) != width {
			return nil, errors.New("aligned records differ in length")
		}
	}
	return aligned, nil
}
