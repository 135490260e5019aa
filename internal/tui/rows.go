package tui

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/temirov/contextkit/internal/types"
)

// row is one visible line of the tree.
type row struct {
	node  types.Node
	depth int
}

// visibleRows flattens nodes, descending only into expanded folders.
func visibleRows(nodes []types.Node, expanded []string) []row {
	expandedSet := make(map[string]struct{}, len(expanded))
	for _, expandedPath := range expanded {
		expandedSet[expandedPath] = struct{}{}
	}
	var rows []row
	var visit func(current []types.Node, depth int)
	visit = func(current []types.Node, depth int) {
		for _, node := range current {
			rows = append(rows, row{node: node, depth: depth})
			if _, isExpanded := expandedSet[node.Path]; isExpanded && node.IsFolder() {
				visit(node.Children, depth+1)
			}
		}
	}
	visit(nodes, 0)
	return rows
}

// filterFiles ranks files against query, best match first. Ties keep index order.
func filterFiles(query string, files []string) []string {
	if query == "" {
		return nil
	}
	ranks := fuzzy.RankFindFold(query, files)
	sort.Stable(ranks)
	matches := make([]string, 0, len(ranks))
	for _, rank := range ranks {
		matches = append(matches, rank.Target)
	}
	return matches
}
