package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/utils"
)

const duplicateLabelFormat = "%s (%d)"

// Root is one workspace folder. Label is the first segment of every node path beneath it.
type Root struct {
	Label  string
	Handle filesystem.Handle
}

// RootsFromPaths builds roots labelled by their base names. Repeated base names are
// suffixed with an ordinal so that every label, and therefore every node path, is unique.
func RootsFromPaths(paths []string) []Root {
	roots := make([]Root, 0, len(paths))
	labelCounts := map[string]int{}
	seenHandles := map[string]struct{}{}
	for _, rootPath := range paths {
		cleaned := filepath.Clean(rootPath)
		if _, seen := seenHandles[cleaned]; seen {
			continue
		}
		seenHandles[cleaned] = struct{}{}
		label := utils.BaseName(cleaned)
		if label == "." || label == "/" || label == utils.EmptyString {
			label = cleaned
		}
		labelCounts[label]++
		if count := labelCounts[label]; count > 1 {
			label = fmt.Sprintf(duplicateLabelFormat, label, count)
		}
		roots = append(roots, Root{Label: label, Handle: filesystem.Handle(cleaned)})
	}
	return roots
}
