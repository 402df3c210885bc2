package table

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Diff : outcome of a column name reconciliation between the incoming data and the target table.
//
// Only names are compared. Two columns with the same name but different types
// are considered equal, type drift is out of scope for this check.
type Diff struct {
	Match           bool
	MissingInTarget []string
	MissingInSource []string
}

// Compare : compares the column names already present on the target with the incoming ones.
// A target table that does not exist always matches since it will be created from the incoming columns.
func Compare(existing []string, incoming []string, targetExists bool) Diff {
	if !targetExists {
		return Diff{Match: true}
	}
	inTargetOnly, inSourceOnly := lo.Difference(normalizeNames(existing), normalizeNames(incoming))
	sort.Strings(inTargetOnly)
	sort.Strings(inSourceOnly)
	return Diff{
		Match:           len(inTargetOnly) == 0 && len(inSourceOnly) == 0,
		MissingInTarget: inSourceOnly,
		MissingInSource: inTargetOnly,
	}
}

// Message : human readable description of the drift, empty when the columns match
func (d Diff) Message(sourceLabel string, targetLabel string) string {
	if d.Match {
		return ""
	}
	var b strings.Builder
	b.WriteString("Column differences found:\n")
	if len(d.MissingInTarget) > 0 {
		b.WriteString("- Columns in " + sourceLabel + " but not in " + targetLabel + ": " + strings.Join(d.MissingInTarget, ", ") + "\n")
	}
	if len(d.MissingInSource) > 0 {
		b.WriteString("- Columns in " + targetLabel + " but not in " + sourceLabel + ": " + strings.Join(d.MissingInSource, ", ") + "\n")
	}
	return b.String()
}

func normalizeNames(names []string) []string {
	return lo.Uniq(lo.Map(names, func(n string, _ int) string {
		return TargetIdentifier(n)
	}))
}
