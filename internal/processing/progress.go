package processing

// ProgressCallback receives updates while a drawing is processed.
type ProgressCallback interface {
	// OnFileStart is called once the drawing is loaded and its sections are known
	OnFileStart(filename string, totalSections int)

	// OnSectionDone is called after each section finishes, in completion order
	OnSectionDone(filename string, sectionID string, bins int)

	// OnFileComplete is called when all sections have finished
	OnFileComplete(filename string)
}

// NoOpProgressCallback is a default implementation that does nothing
type NoOpProgressCallback struct{}

func (n *NoOpProgressCallback) OnFileStart(filename string, totalSections int)            {}
func (n *NoOpProgressCallback) OnSectionDone(filename string, sectionID string, bins int) {}
func (n *NoOpProgressCallback) OnFileComplete(filename string)                            {}
