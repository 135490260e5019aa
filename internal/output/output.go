// Package output renders workspace trees, selection summaries and status lines for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/temirov/contextkit/internal/types"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	folderSuffix      = "/"
	ignoredSuffix     = " (ignored)"
	unloadedSuffix    = " …"
	jsonIndentPrefix  = ""
	jsonIndentSpacer  = "  "
	summaryFileLabel  = "file"
	summaryFilesLabel = "files"

	summaryLineFormat      = "Summary: %d %s, %s"
	estimatedTokensFormat  = ", ~%d tokens"
	exactTokensFormat      = ", %d tokens (model: %s)"
	skippedFilesFormat     = ", %d skipped"
	errorEncodeTreeFormat  = "encode tree: %w"
	errorWriteOutputFormat = "write output: %w"
)

// WriteTreesRaw renders every root with box-drawing connectors, separating roots by a blank line.
func WriteTreesRaw(writer io.Writer, nodes []types.Node) error {
	for index, node := range nodes {
		if index > 0 {
			if _, err := fmt.Fprintln(writer); err != nil {
				return fmt.Errorf(errorWriteOutputFormat, err)
			}
		}
		if err := renderTreeNode(writer, node, "", true, true); err != nil {
			return err
		}
	}
	return nil
}

// WriteTreesJSON renders nodes as an indented JSON array.
func WriteTreesJSON(writer io.Writer, nodes []types.Node) error {
	if nodes == nil {
		nodes = []types.Node{}
	}
	encoded, err := json.MarshalIndent(nodes, jsonIndentPrefix, jsonIndentSpacer)
	if err != nil {
		return fmt.Errorf(errorEncodeTreeFormat, err)
	}
	if _, err := fmt.Fprintln(writer, string(encoded)); err != nil {
		return fmt.Errorf(errorWriteOutputFormat, err)
	}
	return nil
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, node types.Node, prefix string, isRoot bool, isLast bool) error {
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	if _, err := fmt.Fprintln(writer, linePrefix+nodeLabel(node, isRoot)); err != nil {
		return fmt.Errorf(errorWriteOutputFormat, err)
	}
	for index, child := range node.Children {
		if err := renderTreeNode(writer, child, childPrefix, false, index == len(node.Children)-1); err != nil {
			return err
		}
	}
	return nil
}

func nodeLabel(node types.Node, isRoot bool) string {
	label := node.Label
	if isRoot {
		label = node.Path
	}
	if node.IsFolder() {
		label += folderSuffix
		if !node.Loaded && node.HasChildren {
			label += unloadedSuffix
		}
	}
	if node.Ignored {
		label += ignoredSuffix
	}
	return label
}

// Summary is a selection total as printed by the summary line.
type Summary struct {
	Files int
	Bytes int64
	// Tokens is an estimate unless Model is set.
	Tokens  int
	Model   string
	Skipped int
}

// FormatSummaryLine renders summary as a single line.
func FormatSummaryLine(formattedSize string, summary Summary) string {
	label := summaryFilesLabel
	if summary.Files == 1 {
		label = summaryFileLabel
	}
	line := fmt.Sprintf(summaryLineFormat, summary.Files, label, formattedSize)
	if summary.Model != "" {
		line += fmt.Sprintf(exactTokensFormat, summary.Tokens, summary.Model)
	} else {
		line += fmt.Sprintf(estimatedTokensFormat, summary.Tokens)
	}
	if summary.Skipped > 0 {
		line += fmt.Sprintf(skippedFilesFormat, summary.Skipped)
	}
	return line
}
