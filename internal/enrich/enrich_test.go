package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostyslav/OSGenome/internal/snp"
)

func TestFlipAlleles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		genotype    string
		orientation string
		want        string
		wantFlipped bool
	}{
		{"minus flips both", "(A;T)", "minus", "(T;A)", true},
		{"minus flips cg", "(C;G)", "minus", "(G;C)", true},
		{"plus unchanged", "(A;T)", "plus", "(A;T)", false},
		{"empty orientation unchanged", "(A;T)", "", "(A;T)", false},
		{"empty genotype", "", "minus", "", false},
		{"unknown allele passes through", "(A;I)", "minus", "(T;I)", true},
		{"single allele unchanged", "(A)", "minus", "(A)", false},
		{"missing calls flip to themselves", "(-;-)", "minus", "(-;-)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, flipped := FlipAlleles(tt.genotype, tt.orientation)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFlipped, flipped)
		})
	}
}

func TestIsInteresting(t *testing.T) {
	t.Parallel()

	common := [][]string{
		{"(A;A)", "1.0", "Common in complete genomics"},
		{"(A;G)", "1.1", "Normal risk"},
	}
	assert.False(t, IsInteresting(common))

	mixed := [][]string{
		{"(A;A)", "1.0", "common"},
		{"(G;G)", "2.5", "Increased risk of thrombosis"},
	}
	assert.True(t, IsInteresting(mixed))

	assert.False(t, IsInteresting(nil))
	assert.False(t, IsInteresting([][]string{{"(A;A)", "1.0"}}))
}

func TestIsUncommon(t *testing.T) {
	t.Parallel()

	variations := [][]string{
		{"(A;A)", "1.0", "Common in clinvar"},
		{"(A;G)", "1.5", "normal"},
		{"(G;G)", "3.0", "Higher risk"},
	}

	assert.True(t, IsUncommon("(G;G)", variations))
	assert.False(t, IsUncommon("(A;G)", variations))
	assert.False(t, IsUncommon("(A;A)", variations), "common in clinvar is excluded")
	assert.False(t, IsUncommon("(T;T)", variations), "unknown genotype")
	assert.False(t, IsUncommon("(G;G)", [][]string{{"(G;G)", "3.0"}}), "no description column")
}

func TestHasGenotype(t *testing.T) {
	t.Parallel()

	assert.True(t, HasGenotype("(A;T)"))
	assert.False(t, HasGenotype("(-;-)"))
	assert.False(t, HasGenotype(""))
	assert.False(t, HasGenotype("   "))
}

func TestBuildBoldsMatchingVariation(t *testing.T) {
	t.Parallel()

	rec := snp.Record{
		Description:           "test snp",
		StabilizedOrientation: "plus",
		Variations: [][]string{
			{"(A;A)", "1.0", "common"},
			{"(A;T)", "2.0", "elevated risk"},
		},
	}
	entry := Build("rs42", "(A;T)", rec)

	assert.Equal(t, "rs42", entry.Name)
	assert.Equal(t, "(A;T)", entry.Genotype)
	assert.Equal(t, "(A;A) 1.0 common<br><b>(A;T) 2.0 elevated risk</b>", entry.Variations)
	assert.Equal(t, "Yes", entry.IsInteresting)
	assert.Equal(t, "Yes", entry.IsUncommon)
}

func TestBuildAnnotatesFlip(t *testing.T) {
	t.Parallel()

	rec := snp.Record{
		StabilizedOrientation: "minus",
		Variations: [][]string{
			{"(T;A)", "2.0", "elevated risk"},
		},
	}
	entry := Build("rs42", "(A;T)", rec)

	// The display keeps the personal genotype and notes the flipped form;
	// matching is done against the flipped genotype.
	assert.Equal(t, "(A;T)<br><i>flipped<br>(T;A)</i>", entry.Genotype)
	assert.Equal(t, "<b>(T;A) 2.0 elevated risk</b>", entry.Variations)
}

func TestBuildEntries(t *testing.T) {
	t.Parallel()

	personal := map[string]string{
		"rs3": "(A;A)",
		"rs1": "(C;C)",
		"rs2": "(-;-)",  // missing call, skipped
		"rs4": "(G;G)",  // no fetched record, skipped
		"rs5": "(T;T)",  // empty record (404), skipped
	}
	records := map[string]snp.Record{
		"rs1": {Description: "first", Variations: [][]string{{"(C;C)", "1.0", "rare"}}},
		"rs2": {Description: "second"},
		"rs3": {Description: "third"},
		"rs5": {},
	}

	entries := BuildEntries(personal, records)
	require.Len(t, entries, 2)
	assert.Equal(t, "rs1", entries[0].Name)
	assert.Equal(t, "rs3", entries[1].Name)
	assert.Equal(t, "first", entries[0].Description)
	assert.Equal(t, "No", entries[1].IsInteresting)
}
