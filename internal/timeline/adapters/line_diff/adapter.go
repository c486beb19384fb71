// Package linediff computes unified diffs between successive chart documents.
package linediff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Adapter implements ports.DiffPort using a line-based unified diff.
type Adapter struct {
	context int
}

// New creates a line diff adapter showing one line of context, which is
// enough to locate a milestone in the chart body.
func New() *Adapter {
	return &Adapter{context: 1}
}

// ComputeDiff returns the unified diff between base and head, or an empty
// string when they are identical.
func (a *Adapter) ComputeDiff(baseName, headName string, base, head []byte) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(base)),
		B:        difflib.SplitLines(string(head)),
		FromFile: baseName,
		ToFile:   headName,
		Context:  a.context,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("error computing diff: %s", err)
	}
	return strings.TrimSpace(text)
}
