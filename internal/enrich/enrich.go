// Package enrich combines personal genotypes with fetched reference records
// into the display entries persisted as the enriched result table.
package enrich

import (
	"sort"
	"strings"

	"github.com/frostyslav/OSGenome/internal/snp"
)

// commonWords are description prefixes that mark a variation as ordinary.
var commonWords = []string{
	"common",
	"very common",
	"most common",
	"normal",
	"average",
	"miscall in ancestry",
	"ancestry miscall",
	"miscall by ancestry",
}

var flipMap = map[string]string{"A": "T", "T": "A", "C": "G", "G": "C"}

// Entry is one row of the enriched result table. Field names and the
// Yes/No string flags match the on-disk result_table.json schema.
type Entry struct {
	Name                  string `json:"Name"`
	Description           string `json:"Description"`
	Genotype              string `json:"Genotype"`
	Variations            string `json:"Variations"`
	StabilizedOrientation string `json:"StabilizedOrientation"`
	IsInteresting         string `json:"IsInteresting"`
	IsUncommon            string `json:"IsUncommon"`
}

// FlipAlleles converts a genotype like "(A;T)" to the opposite strand when
// the reference orientation is minus. A genotype that is empty or not a
// two-allele pair passes through unchanged.
func FlipAlleles(genotype, orientation string) (string, bool) {
	if orientation != "minus" || genotype == "" {
		return genotype, false
	}
	alleles := strings.Split(strings.Trim(genotype, "()"), ";")
	if len(alleles) != 2 {
		return genotype, false
	}
	flipped := make([]string, 2)
	for i, allele := range alleles {
		allele = strings.TrimSpace(allele)
		if f, ok := flipMap[allele]; ok {
			flipped[i] = f
		} else {
			flipped[i] = allele
		}
	}
	return "(" + flipped[0] + ";" + flipped[1] + ")", true
}

// IsInteresting reports whether any variation carries a description that is
// not one of the common prefixes.
func IsInteresting(variations [][]string) bool {
	for _, variation := range variations {
		if len(variation) > 2 && !startsWithCommon(variation[2]) {
			return true
		}
	}
	return false
}

// IsUncommon reports whether the variation matching genotype has a
// description that is neither a common prefix nor flagged common in clinvar.
func IsUncommon(genotype string, variations [][]string) bool {
	info := genotypeInfo(genotype, variations)
	if len(info) <= 2 {
		return false
	}
	desc := strings.ToLower(info[2])
	return !startsWithCommon(info[2]) && !strings.Contains(desc, "common in clinvar")
}

// HasGenotype reports whether a personal genotype carries real allele data.
func HasGenotype(genotype string) bool {
	return genotype != "(-;-)" && strings.TrimSpace(genotype) != ""
}

// Build combines one personal genotype with its reference record.
func Build(rsid, genotype string, rec snp.Record) Entry {
	current, flipped := FlipAlleles(genotype, rec.StabilizedOrientation)

	display := genotype
	if flipped {
		display += "<br><i>flipped<br>" + current + "</i>"
	}

	formatted := make([]string, 0, len(rec.Variations))
	for _, variation := range rec.Variations {
		if len(variation) == 0 {
			continue
		}
		row := strings.Join(variation, " ")
		if variation[0] == current {
			row = "<b>" + row + "</b>"
		}
		formatted = append(formatted, row)
	}

	return Entry{
		Name:                  rsid,
		Description:           rec.Description,
		Genotype:              display,
		Variations:            strings.Join(formatted, "<br>"),
		StabilizedOrientation: rec.StabilizedOrientation,
		IsInteresting:         yesNo(IsInteresting(rec.Variations)),
		IsUncommon:            yesNo(IsUncommon(current, rec.Variations)),
	}
}

// BuildEntries enriches every personal genotype that has both real allele
// data and a non-empty fetched record, ordered by identifier.
func BuildEntries(personal map[string]string, records map[string]snp.Record) []Entry {
	rsids := make([]string, 0, len(personal))
	for rsid := range personal {
		rsids = append(rsids, rsid)
	}
	sort.Strings(rsids)

	entries := make([]Entry, 0, len(rsids))
	for _, rsid := range rsids {
		genotype := personal[rsid]
		if !HasGenotype(genotype) {
			continue
		}
		rec, ok := records[rsid]
		if !ok || rec.IsZero() {
			continue
		}
		entries = append(entries, Build(rsid, genotype, rec))
	}
	return entries
}

func genotypeInfo(genotype string, variations [][]string) []string {
	for _, variation := range variations {
		if len(variation) > 0 && variation[0] == genotype {
			return variation
		}
	}
	return nil
}

func startsWithCommon(description string) bool {
	desc := strings.ToLower(description)
	for _, w := range commonWords {
		if strings.HasPrefix(desc, w) {
			return true
		}
	}
	return false
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
