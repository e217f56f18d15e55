package deck

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDeckIsValid(t *testing.T) {
	d := Default()
	require.NoError(t, d.Validate())
	m, b := d.Stats()
	assert.Equal(t, 8, m)
	assert.Equal(t, 5, b)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.txt")
	bonusPath := filepath.Join(dir, "bonus.txt")
	require.NoError(t, os.WriteFile(mainPath, []byte("# fruit\nA\nB\nC\nD\n\nE\nF\nG\nH\nI\n"), 0o644))
	require.NoError(t, os.WriteFile(bonusPath, []byte("  x  \ny\n"), 0o644))

	d, err := Load(mainPath, bonusPath)
	require.NoError(t, err)
	assert.Len(t, d.Main, 9)
	assert.Equal(t, []string{"x", "y"}, d.Bonus)
}

func TestLoadRejectsBadPools(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name  string
		main  string
		bonus string
	}{
		{"too few main", write("short.txt", "a\nb\nc\n"), ""},
		{"duplicate main", write("dup.txt", "a\nb\nc\nd\ne\nf\ng\na\n"), ""},
		{"too few bonus", "", write("b1.txt", "z\n")},
		{"shared symbol", write("m.txt", "a\nb\nc\nd\ne\nf\ng\nh\n"), write("b2.txt", "a\nz\n")},
		{"missing file", filepath.Join(dir, "nope.txt"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.main, tt.bonus)
			assert.Error(t, err)
		})
	}
}

func TestPickDistinct(t *testing.T) {
	d := Default()
	rng := rand.New(rand.NewPCG(1, 2))

	main := d.MainSymbols(rng)
	assert.ElementsMatch(t, d.Main, main)

	for i := 0; i < 50; i++ {
		bonus := d.BonusSymbols(rng)
		require.Len(t, bonus, BonusPairs)
		assert.NotEqual(t, bonus[0], bonus[1])
		assert.Subset(t, d.Bonus, bonus)
	}
}

func TestCurrentFallsBackToDefault(t *testing.T) {
	d := Current()
	require.NotNil(t, d)
	assert.NoError(t, d.Validate())
}
