// Package resolver drives AI conflict resolution for a repository left
// mid-rebase: it parses conflict regions, asks the oracle for merged
// content, writes it back, and resumes the interrupted integration.
package resolver

import "regexp"

// Region is one parsed conflict block: the "ours" and "theirs" sides.
// Git's default markers carry no base block, so none is recorded.
type Region struct {
	Ours   string
	Theirs string
}

// markerPattern matches one conflict block: a 7-character `<` marker
// line with a label, the ours lines, a 7-character `=` separator, the
// theirs lines, and a 7-character `>` marker line with a label.
var markerPattern = regexp.MustCompile(`(?s)<{7} .*?\n(.*?)\n={7}\n(.*?)\n>{7} .*?\n`)

// ParseRegions extracts all conflict regions from file content.
// Content without marker sequences yields an empty list; that is not
// an error. Multiline blocks are preserved exactly, including internal
// newlines.
func ParseRegions(content string) []Region {
	var regions []Region
	for _, m := range markerPattern.FindAllStringSubmatch(content, -1) {
		regions = append(regions, Region{Ours: m[1], Theirs: m[2]})
	}
	return regions
}
