package batch

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsmirror/internal/domain"
)

func writeLines(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("line")
		b.WriteString(strings.Repeat("x", i))
		b.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "jobs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func drain(t *testing.T, r *Reader) []Group {
	t.Helper()
	var out []Group
	for {
		g, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, g)
	}
}

func TestPartitionSizes(t *testing.T) {
	r, err := Open(writeLines(t, 5), 2, 1)
	require.NoError(t, err)
	defer r.Close()

	var sizes, ids []int
	for _, g := range drain(t, r) {
		require.Len(t, g, 1)
		sizes = append(sizes, len(g[0].Lines))
		ids = append(ids, g[0].ID)
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestGroupWidth(t *testing.T) {
	r, err := Open(writeLines(t, 5), 2, 2)
	require.NoError(t, err)
	defer r.Close()

	groups := drain(t, r)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
	assert.Equal(t, 3, groups[1][0].ID)
}

func TestAbsoluteLineNumbers(t *testing.T) {
	r, err := Open(writeLines(t, 5), 2, 3)
	require.NoError(t, err)
	defer r.Close()

	var nums []int
	for _, g := range drain(t, r) {
		for _, b := range g {
			for _, l := range b.Lines {
				nums = append(nums, l.Number)
				assert.Equal(t, "line"+strings.Repeat("x", l.Number), l.Text)
			}
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, nums)
}

func TestExactMultipleHasNoEmptyBatch(t *testing.T) {
	r, err := Open(writeLines(t, 4), 2, 1)
	require.NoError(t, err)
	defer r.Close()

	groups := drain(t, r)
	assert.Len(t, groups, 2)
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	r, err := Open(path, 2, 1)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.jsonl"), 2, 1)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestInvalidSizes(t *testing.T) {
	path := writeLines(t, 1)
	_, err := Open(path, 0, 1)
	require.Error(t, err)
	_, err = Open(path, 1, 0)
	require.Error(t, err)
}
