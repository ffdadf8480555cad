// Package envelope implements the wire shapes and path arithmetic that the
// Router Core and Broadcast Engine operate on: cell paths, the Routed and
// Broadcast envelope forms, and the instance-message builders that strip
// fields before they cross a cell boundary.
package envelope

import "strings"

// Direction indicates whether a message travels toward the root of the
// cell tree ("up") or away from it toward children ("down").
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Reverse returns the opposite direction, used when a routed call's
// Response is sent back along the same path it arrived on.
func (d Direction) Reverse() Direction {
	if d == Up {
		return Down
	}
	return Up
}

// pathSeparator matches the dotted CellIdentity notation used throughout
// the fabric (e.g. "region.az1.cell3").
const pathSeparator = "."

// SplitPath splits a dotted cell path into its labels. An empty path
// yields an empty slice, not a slice with one empty label.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, pathSeparator)
}

// JoinPath is the inverse of SplitPath.
func JoinPath(labels []string) string {
	return strings.Join(labels, pathSeparator)
}

// AppendPath returns path with name appended as its final label, used by
// the Broadcast Engine when forwarding a broadcast one hop further from
// its origin.
func AppendPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + pathSeparator + name
}

// ReversePath returns the path a Response should travel back along: the
// same labels in reverse order. It is its own inverse.
func ReversePath(path string) string {
	labels := SplitPath(path)
	reversed := make([]string, len(labels))
	for i, label := range labels {
		reversed[len(labels)-1-i] = label
	}
	return JoinPath(reversed)
}

// HopCount returns the number of labels in path: 0 for the empty path,
// 1 for a single-label path such as the root's.
func HopCount(path string) int {
	return len(SplitPath(path))
}

// IsPrefix reports whether want's labels are a prefix of cur's labels,
// i.e. cur could only have been reached by first passing through want.
// Used by findNextHop to validate that a destination is still reachable
// along the path a message has already traveled.
func IsPrefix(want, cur []string) bool {
	if len(want) > len(cur) {
		return false
	}
	for i, label := range want {
		if cur[i] != label {
			return false
		}
	}
	return true
}
