package align

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript puts an executable named mafft in a temp dir and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mafft")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestMafftAlign(t *testing.T) {
	// Emits the records in reverse order to check the re-mapping.
	bin := writeScript(t, `cat > /dev/null
printf '>s2\nMK-L\n>s1\nmkvl\n>s0\nM--L\n'
`)
	m := &Mafft{Binary: bin}
	out, err := m.Align(context.Background(), []string{"ML", "MKVL", "MKL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"M--L", "MKVL", "MK-L"}, out)
}

func TestMafftAlignReceivesFasta(t *testing.T) {
	dir := t.TempDir()
	captured := filepath.Join(dir, "stdin.fa")
	bin := writeScript(t, `cat > `+captured+`
printf '>s0\nAC\n>s1\nAC\n'
`)
	m := &Mafft{Binary: bin}
	_, err := m.Align(context.Background(), []string{"AC", "AC"})
	require.NoError(t, err)

	data, err := os.ReadFile(captured)
	require.NoError(t, err)
	assert.Contains(t, string(data), ">s0")
	assert.Contains(t, string(data), ">s1")
}

func TestMafftUnavailable(t *testing.T) {
	m := &Mafft{Binary: filepath.Join(t.TempDir(), "missing-mafft")}
	_, err := m.Align(context.Background(), []string{"MK", "MK"})
	assert.ErrorIs(t, err, ErrAlignerUnavailable)

	failing := &Mafft{Binary: writeScript(t, "exit 3\n")}
	_, err = failing.Align(context.Background(), []string{"MK", "MK"})
	assert.ErrorIs(t, err, ErrAlignerUnavailable)
}

func TestMafftBadOutput(t *testing.T) {
	m := &Mafft{Binary: writeScript(t, "cat > /dev/null\nprintf '>s0\\nMK\\n'\n")}
	_, err := m.Align(context.Background(), []string{"MK", "MK"})
	assert.ErrorIs(t, err, ErrAlignerUnavailable)

	ragged := &Mafft{Binary: writeScript(t, "cat > /dev/null\nprintf '>s0\\nMK\\n>s1\\nM\\n'\n")}
	_, err = ragged.Align(context.Background(), []string{"MK", "M"})
	assert.ErrorIs(t, err, ErrAlignerUnavailable)
}

func TestMafftNeedsTwoSequences(t *testing.T) {
	m := &Mafft{}
	_, err := m.Align(context.Background(), []string{"MK"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlignerUnavailable)
}
