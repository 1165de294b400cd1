// Package scrollsync keeps the document viewport and the preview surface
// aligned in both directions without feedback oscillation.
package scrollsync

// TopRatio returns the position of line within the visible range
// [first, last] as a ratio in [0, 1]. A single-line range yields 0.
func TopRatio(line, first, last int) float64 {
	if last <= first {
		return 0
	}
	ratio := float64(line-first) / float64(last-first)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// SyncTarget picks the line and ratio announced to the preview for the
// visible range [first, last] of a document with lineCount lines. The top
// of the document pins to (0, 0) and the bottom to (last line, 1) so the
// extremes stay reachable despite rounding; anywhere else the midpoint
// travels at ratio 0.5.
func SyncTarget(first, last, lineCount int) (int, float64) {
	if first <= 0 {
		return 0, 0
	}
	if lineCount > 0 && last >= lineCount-1 {
		return lineCount - 1, 1
	}
	return (first + last) / 2, 0.5
}

// RevealRatio returns the viewport ratio at which a revealed target line
// should be placed: the document's first line pins to the top, its last
// line to the bottom, everything else centers.
func RevealRatio(target, lineCount int) float64 {
	if target <= 0 {
		return 0
	}
	if lineCount > 0 && target >= lineCount-1 {
		return 1
	}
	return 0.5
}

// ScrollOffset returns the pixel offset that places row at the given
// viewport ratio. Ratio 0.5 centers the row. Never negative.
func ScrollOffset(row int, lineHeight, viewHeight, ratio float64) float64 {
	offset := float64(row)*lineHeight - viewHeight*ratio
	if offset < 0 {
		return 0
	}
	return offset
}
