package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/model"
)

var (
	ErrSequenceNotFound   = errors.New("sequence not found")
	ErrNetworkUnavailable = errors.New("sequence service unreachable")
)

// SequenceFetcher returns the raw residues for an accession.
type SequenceFetcher interface {
	Fetch(ctx context.Context, accession string, kind model.SeqType) (string, error)
}

// BlastDBFetcher reads sequences from a local BLAST database with blastdbcmd.
type BlastDBFetcher struct {
	DB      string
	Command string // defaults to blastdbcmd
}

func (f *BlastDBFetcher) command() string {
	if f.Command == "" {
		return "blastdbcmd"
	}
	return f.Command
}

// Fetch runs: blastdbcmd -db DB -entry ACC -outfmt %s
func (f *BlastDBFetcher) Fetch(ctx context.Context, accession string, _ model.SeqType) (string, error) {
	args := []string{"-db", f.DB, "-entry", accession, "-outfmt", "%s"}
	cmd := exec.CommandContext(ctx, f.command(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", err, f.command())
		}
		return "", fmt.Errorf("%w: %s (%s)", ErrSequenceNotFound, accession, strings.TrimSpace(stderr.String()))
	}

	// One line per matching entry; the first one wins.
	seq, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	seq = strings.TrimSpace(seq)
	if seq == "" {
		return "", fmt.Errorf("%w: %s", ErrSequenceNotFound, accession)
	}
	return strings.ToUpper(seq), nil
}

// FetchBatch reads several accessions in one blastdbcmd call through -entry_batch.
// Accessions missing from the database are absent from the returned map.
func (f *BlastDBFetcher) FetchBatch(ctx context.Context, accessions []string) (map[string]string, error) {
	var input bytes.Buffer
	for _, acc := range accessions {
		input.WriteString(acc)
		input.WriteString("\n")
	}

	// cat ids.txt | blastdbcmd -db DB -entry_batch - -outfmt "%a %s"
	args := []string{"-db", f.DB, "-entry_batch", "-", "-outfmt", "%a %s"}
	cmd := exec.CommandContext(ctx, f.command(), args...)
	cmd.Stdin = &input
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil && len(output) == 0 {
		return nil, fmt.Errorf("%s - %s", err, strings.TrimSpace(stderr.String()))
	}

	found := make(map[string]string, len(accessions))
	for _, line := range strings.Split(string(output), "\n") {
		acc, seq, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		if _, seen := found[acc]; !seen {
			found[acc] = strings.ToUpper(strings.TrimSpace(seq))
		}
	}
	return found, nil
}

const defaultEfetchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

// NCBIFetcher downloads sequences from NCBI E-utilities.
type NCBIFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewNCBIFetcher() *NCBIFetcher {
	return &NCBIFetcher{
		BaseURL: defaultEfetchURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *NCBIFetcher) Fetch(ctx context.Context, accession string, kind model.SeqType) (string, error) {
	database := "protein"
	if kind == model.Nucleotide {
		database = "nucleotide"
	}
	q := url.Values{}
	q.Set("db", database)
	q.Set("id", accession)
	q.Set("rettype", "fasta")
	q.Set("retmode", "text")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: %s", ErrSequenceNotFound, accession)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d", ErrNetworkUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("efetch %s: status %d", accession, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	seqs, err := ParseFasta(bytes.NewReader(body))
	if err != nil || len(seqs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSequenceNotFound, accession)
	}
	return seqs[0].RawSequence, nil
}

// ChainFetcher tries each fetcher in turn until one finds the sequence.
type ChainFetcher []SequenceFetcher

func (c ChainFetcher) Fetch(ctx context.Context, accession string, kind model.SeqType) (string, error) {
	err := fmt.Errorf("%w: %s", ErrSequenceNotFound, accession)
	for _, f := range c {
		seq, ferr := f.Fetch(ctx, accession, kind)
		if ferr == nil {
			return seq, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Debug("fetcher miss", zap.String("accession", accession), zap.Error(ferr))
		// A missing sequence is less informative than an outage further down the chain.
		if !errors.Is(err, ErrNetworkUnavailable) || errors.Is(ferr, ErrNetworkUnavailable) {
			err = ferr
		}
	}
	return "", err
}

// CachedFetcher keeps recently fetched sequences in an LRU cache.
// Hits are often shared between neighbouring predictions.
type CachedFetcher struct {
	next  SequenceFetcher
	cache *lru.Cache[string, string]
}

func NewCachedFetcher(next SequenceFetcher, size int) (*CachedFetcher, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedFetcher{next: next, cache: cache}, nil
}

func (c *CachedFetcher) Fetch(ctx context.Context, accession string, kind model.SeqType) (string, error) {
	key := kind.String() + ":" + accession
	if seq, ok := c.cache.Get(key); ok {
		return seq, nil
	}
	seq, err := c.next.Fetch(ctx, accession, kind)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, seq)
	return seq, nil
}

func (c *CachedFetcher) Len() int {
	return c.cache.Len()
}
