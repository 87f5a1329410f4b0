package report

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff compares two reports by their coverage rendering, which excludes
// timestamps and origin counts, and returns a unified diff, or "" when
// they are equivalent. Used to verify that a re-run reproduced a prior
// run's coverage.
func Diff(before, after *Report) (string, error) {
	a := before.coverageText()
	b := after.coverageText()
	if a == b {
		return "", nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff reports: %w", err)
	}
	return diff, nil
}
