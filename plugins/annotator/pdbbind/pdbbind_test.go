package pdbbind

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pdbgraph/pkg/contract"
)

func atom(serial int, res, chain string, seq int, x float64) string {
	return atomI(serial, res, chain, seq, "", x)
}

func atomI(serial int, res, chain string, seq int, icode string, x float64) string {
	return fmt.Sprintf("%-6s%5d %-4s%1s%3s %1s%4d%1s   %8.3f%8.3f%8.3f%6.2f%6.2f           C\n",
		"ATOM", serial, " CA", "", res, chain, seq, icode, x, 0.0, 0.0, 1.0, 0.0)
}

func protein(fileID string) *contract.Protein {
	return &contract.Protein{
		ID:           "1a1e",
		FileID:       contract.FileID(fileID),
		Sequence:     "AGSK",
		ResidueIndex: []int{1, 2, 3, 2},
		ChainID:      []string{"A", "A", "A", "B"},
		Coords:       make([]contract.Coord, 4),
	}
}

func writePocket(t *testing.T, dir string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(atom(1, "GLY", "A", 2, 0))
	b.WriteString(atom(2, "MSE", "A", 3, 1))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1a1e_pocket.pdb"), []byte(b.String()), 0o644))
}

func TestAnnotateBindingSite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1a1e")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writePocket(t, dir)

	a, err := New(nil)
	require.NoError(t, err)
	p := protein(filepath.ToSlash(filepath.Join(dir, "1a1e_protein.pdb")))
	require.NoError(t, a.Annotate(context.Background(), p))
	require.Equal(t, []float64{0, 1, 1, 0}, p.Attrs["binding_site"])
	require.NoError(t, p.Validate())

	off := false
	a, err = New(&Options{MatchChain: &off, Attr: "site"})
	require.NoError(t, err)
	p = protein(filepath.ToSlash(filepath.Join(dir, "1a1e_protein.pdb")))
	require.NoError(t, a.Annotate(context.Background(), p))
	require.Equal(t, []float64{0, 1, 1, 1}, p.Attrs["site"])
}

func TestAnnotateMissingPocket(t *testing.T) {
	a, _ := New(nil)
	p := protein(filepath.ToSlash(filepath.Join(t.TempDir(), "9zzz_protein.pdb")))
	err := a.Annotate(context.Background(), p)
	require.ErrorIs(t, err, contract.ErrMissingInput)
}

func TestPocketPath(t *testing.T) {
	a, _ := New(&Options{PocketSuffix: "_site.pdb"})
	got := a.PocketPath(protein("set/1a1e/1a1e_protein.pdb"))
	require.Equal(t, filepath.FromSlash("set/1a1e/1a1e_site.pdb"), got)
	// 不带蛋白后缀时回退到 ID
	got = a.PocketPath(protein("set/other.pdb"))
	require.Equal(t, filepath.FromSlash("set/1a1e_site.pdb"), got)
}

// 插入码参与匹配：口袋 52 不应标记蛋白 52A
func TestAnnotateInsertionCode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1a1e")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	pocket := atomI(1, "GLY", "A", 52, "", 0) + atomI(2, "SER", "A", 53, "B", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1a1e_pocket.pdb"), []byte(pocket), 0o644))

	a, err := New(nil)
	require.NoError(t, err)
	p := &contract.Protein{
		ID:            "1a1e",
		FileID:        contract.FileID(filepath.ToSlash(filepath.Join(dir, "1a1e_protein.pdb"))),
		Sequence:      "GASS",
		ResidueIndex:  []int{52, 52, 53, 53},
		ChainID:       []string{"A", "A", "A", "A"},
		Coords:        make([]contract.Coord, 4),
		InsertionCode: []string{"", "A", "", "B"},
	}
	require.NoError(t, a.Annotate(context.Background(), p))
	require.Equal(t, []float64{1, 0, 0, 1}, p.Attrs["binding_site"])
}
