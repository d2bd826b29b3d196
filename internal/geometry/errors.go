package geometry

import "fmt"

// GeometryError reports a layer whose points cannot form a usable profile.
// It is fatal to the whole file being processed.
type GeometryError struct {
	Layer  string
	Reason string
}

func (e *GeometryError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("geometry error: %s", e.Reason)
	}
	return fmt.Sprintf("geometry error in layer %q: %s", e.Layer, e.Reason)
}
