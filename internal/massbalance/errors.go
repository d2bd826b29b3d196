package massbalance

import (
	"fmt"
	"strings"
)

// CoverageError marks a bin where grade or terrain has no data at all.
// It is attached to that bin's result and never stops the section.
type CoverageError struct {
	SectionID string
	BinIndex  int
	XStart    float64
	XEnd      float64
	Layers    []string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("no coverage for %s in section %q bin %d [%.4f, %.4f]",
		strings.Join(e.Layers, ", "), e.SectionID, e.BinIndex, e.XStart, e.XEnd)
}
