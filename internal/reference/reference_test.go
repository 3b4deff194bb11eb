package reference

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bamcall/internal/pileup"
)

const testFASTA = `>chr1 first contig
ACGTAC
gtacgt
AC
>chr2
TTTTGGGG
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSequence_Fetch(t *testing.T) {
	s := NewSequence("chr1", "acgtAC")

	assert.Equal(t, 6, s.Len())
	assert.Equal(t, "ACG", s.Fetch(0, 3))
	assert.Equal(t, "AC", s.Fetch(4, 10))
	assert.Equal(t, "", s.Fetch(6, 1))
	assert.Equal(t, "", s.Fetch(-1, 2))
	assert.Equal(t, "", s.Fetch(2, -1))
	assert.Equal(t, byte('T'), s.Base(3))
	assert.Equal(t, byte('N'), s.Base(99))
}

func TestOpen_Plain(t *testing.T) {
	path := writeFile(t, "ref.fa", testFASTA)

	set, err := Open(path)
	require.NoError(t, err)
	defer set.Close()

	names := set.Names()
	sort.Strings(names)
	assert.Equal(t, []string{"chr1", "chr2"}, names)

	chr1, err := set.Sequence("chr1")
	require.NoError(t, err)
	assert.Equal(t, 14, chr1.Len())
	assert.Equal(t, "ACGTACGTACGTAC", chr1.Fetch(0, 14))

	chr2, err := set.Sequence("chr2")
	require.NoError(t, err)
	assert.Equal(t, "GGGG", chr2.Fetch(4, 4))

	again, err := set.Sequence("chr1")
	require.NoError(t, err)
	assert.Same(t, chr1, again)

	_, err = set.Sequence("chrX")
	assert.Error(t, err)
}

func TestOpen_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.fa.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testFASTA))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	set, err := Open(path)
	require.NoError(t, err)
	defer set.Close()

	chr1, err := set.Sequence("chr1")
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTACGTAC", chr1.Fetch(0, 20))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.fa"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheckLengths(t *testing.T) {
	path := writeFile(t, "ref.fa", testFASTA)
	set, err := Open(path)
	require.NoError(t, err)
	defer set.Close()

	bad := set.CheckLengths([]pileup.Reference{
		{Name: "chr1", Length: 14},
		{Name: "chr2", Length: 99},
		{Name: "chr3", Length: 5},
	})
	assert.Equal(t, 2, bad)
}

func TestParseFASTA(t *testing.T) {
	seqs, err := ParseFASTA(strings.NewReader(testFASTA))
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, "chr1", seqs[0].Name)
	assert.Equal(t, "ACGTACGTACGTAC", seqs[0].Fetch(0, 14))
	assert.Equal(t, "chr2", seqs[1].Name)
	assert.Equal(t, 8, seqs[1].Len())
}
