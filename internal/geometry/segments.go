package geometry

import "fmt"

// ToSegments converts a chain into consecutive segments, dropping zero-length ones.
func ToSegments(chain Chain) ([]Segment, error) {
	segments := make([]Segment, 0, len(chain))
	for i := 1; i < len(chain); i++ {
		seg := Segment{P0: chain[i-1], P1: chain[i]}
		if seg.Length() == 0 {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) < 1 {
		return nil, &GeometryError{Reason: fmt.Sprintf("chain of %d points has fewer than 2 distinct points", len(chain))}
	}
	return segments, nil
}

// LayerSegments concatenates the segments of every chain in a layer.
// Single-point chains are skipped; the layer fails only when nothing is left.
func LayerSegments(layer string, chains []Chain) ([]Segment, int, error) {
	var segments []Segment
	skipped := 0
	for _, chain := range chains {
		segs, err := ToSegments(chain)
		if err != nil {
			skipped++
			continue
		}
		segments = append(segments, segs...)
	}

	if len(segments) == 0 {
		return nil, skipped, &GeometryError{Layer: layer, Reason: "layer yields no segments"}
	}
	return segments, skipped, nil
}
