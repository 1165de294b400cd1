package surface

import "strings"

// ToggleCheckbox flips the first task-list marker on a line: "[ ]"
// becomes "[x]", and "[x]" or "[X]" becomes "[ ]". The second return is
// false when the line carries no marker.
func ToggleCheckbox(line string) (string, bool) {
	if strings.Contains(line, "[ ]") {
		return strings.Replace(line, "[ ]", "[x]", 1), true
	}
	if strings.Contains(line, "[x]") {
		return strings.Replace(line, "[x]", "[ ]", 1), true
	}
	if strings.Contains(line, "[X]") {
		return strings.Replace(line, "[X]", "[ ]", 1), true
	}
	return line, false
}
