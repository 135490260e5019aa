package payload

import (
	"sort"
	"strings"

	"github.com/temirov/contextkit/internal/utils"
)

const (
	treeRootLine        = "."
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	treeFolderSuffix    = "/"
	treeLineSeparator   = "\n"
)

type treeEntry struct {
	name     string
	isFolder bool
	children map[string]*treeEntry
}

// BuildFileTree draws the distinct paths as a box-drawing diagram under a "." root line.
// Folders appear only as ancestors of a path, sorted before files at every level.
// An empty input yields an empty string.
func BuildFileTree(paths []string) string {
	uniquePaths := utils.DeduplicateStrings(paths)
	sort.Strings(uniquePaths)
	root := map[string]*treeEntry{}
	for _, filePath := range uniquePaths {
		addTreePath(root, utils.SplitPathSegments(filePath))
	}
	if len(root) == 0 {
		return utils.EmptyString
	}
	lines := []string{treeRootLine}
	siblings := sortedEntries(root)
	for index, entry := range siblings {
		lines = appendTreeLines(lines, entry, utils.EmptyString, index == len(siblings)-1)
	}
	return strings.Join(lines, treeLineSeparator)
}

func addTreePath(container map[string]*treeEntry, segments []string) {
	for index, segment := range segments {
		isLeaf := index == len(segments)-1
		entry, exists := container[segment]
		if !exists {
			entry = &treeEntry{name: segment}
			container[segment] = entry
		}
		if isLeaf {
			if entry.children == nil {
				entry.isFolder = false
			}
			return
		}
		entry.isFolder = true
		if entry.children == nil {
			entry.children = map[string]*treeEntry{}
		}
		container = entry.children
	}
}

func appendTreeLines(lines []string, entry *treeEntry, prefix string, isLast bool) []string {
	connector := treeBranchConnector
	childPadding := treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPadding = treeLastPadding
	}
	suffix := utils.EmptyString
	if entry.isFolder {
		suffix = treeFolderSuffix
	}
	lines = append(lines, prefix+connector+entry.name+suffix)
	if !entry.isFolder {
		return lines
	}
	children := sortedEntries(entry.children)
	for index, child := range children {
		lines = appendTreeLines(lines, child, prefix+childPadding, index == len(children)-1)
	}
	return lines
}

func sortedEntries(container map[string]*treeEntry) []*treeEntry {
	entries := make([]*treeEntry, 0, len(container))
	for _, entry := range container {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(left, right int) bool {
		if entries[left].isFolder != entries[right].isFolder {
			return entries[left].isFolder
		}
		return utils.CompareNames(entries[left].name, entries[right].name) < 0
	})
	return entries
}
