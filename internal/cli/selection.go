package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
	"github.com/temirov/contextkit/internal/workspace"
)

const (
	nodePathSeparator         = "/"
	parentDirectoryPrefix     = ".."
	errorAbsolutePathFormat   = "abs failed for '%s': %w"
	errorOutsideWorkspace     = "path '%s' is outside every workspace root"
	errorPathNotInWorkspace   = "path '%s' is not part of the workspace (missing or ignored)"
	errorUnknownMetaPrompt    = "unknown saved prompt '%s'"
	errorAmbiguousMetaPrompt  = "saved prompt name '%s' matches more than one prompt"
	errorNodePathWithoutRoots = "node path '%s' belongs to no workspace root"
)

// rootsFromArguments resolves root directories to absolute paths and labels them.
func rootsFromArguments(workingDirectory string, rootArguments []string) ([]workspace.Root, error) {
	if len(rootArguments) == 0 {
		rootArguments = []string{workingDirectory}
	}
	absolutePaths := make([]string, 0, len(rootArguments))
	for _, rootArgument := range rootArguments {
		absolutePath, err := absolutePath(workingDirectory, rootArgument)
		if err != nil {
			return nil, err
		}
		absolutePaths = append(absolutePaths, absolutePath)
	}
	return workspace.RootsFromPaths(absolutePaths), nil
}

// nodePathFor maps a filesystem path onto the label-prefixed node path of the root containing it.
func nodePathFor(roots []workspace.Root, workingDirectory string, argument string) (string, error) {
	target, err := absolutePath(workingDirectory, argument)
	if err != nil {
		return "", err
	}
	for _, root := range roots {
		relative, relativeError := filepath.Rel(string(root.Handle), target)
		if relativeError != nil || relative == parentDirectoryPrefix || strings.HasPrefix(relative, parentDirectoryPrefix+string(filepath.Separator)) {
			continue
		}
		if relative == "." {
			return root.Label, nil
		}
		return root.Label + nodePathSeparator + utils.ToPosix(relative), nil
	}
	return "", fmt.Errorf(errorOutsideWorkspace, argument)
}

// handleForNodePath maps a node path back onto a filesystem handle.
func handleForNodePath(fileSystem filesystem.FileSystem, roots []workspace.Root, nodePath string) (filesystem.Handle, error) {
	for _, root := range roots {
		if nodePath == root.Label {
			return root.Handle, nil
		}
		if !strings.HasPrefix(nodePath, root.Label+nodePathSeparator) {
			continue
		}
		handle := root.Handle
		for _, segment := range utils.SplitPathSegments(strings.TrimPrefix(nodePath, root.Label+nodePathSeparator)) {
			handle = fileSystem.Join(handle, segment)
		}
		return handle, nil
	}
	return "", fmt.Errorf(errorNodePathWithoutRoots, nodePath)
}

// findNode locates nodePath in a loaded tree.
func findNode(nodes []types.Node, nodePath string) (types.Node, bool) {
	for _, node := range nodes {
		if node.Path == nodePath {
			return node, true
		}
		if node.IsFolder() && strings.HasPrefix(nodePath, node.Path+nodePathSeparator) {
			return findNode(node.Children, nodePath)
		}
	}
	return types.Node{}, false
}

// metaPromptIDs resolves each reference by id first and then by case-insensitive name.
func metaPromptIDs(available []types.MetaPrompt, references []string) ([]string, error) {
	ids := make([]string, 0, len(references))
	for _, reference := range references {
		trimmed := strings.TrimSpace(reference)
		resolved := ""
		for _, prompt := range available {
			if prompt.ID == trimmed {
				resolved = prompt.ID
				break
			}
		}
		if resolved == "" {
			for _, prompt := range available {
				if !strings.EqualFold(prompt.Name, trimmed) {
					continue
				}
				if resolved != "" {
					return nil, fmt.Errorf(errorAmbiguousMetaPrompt, trimmed)
				}
				resolved = prompt.ID
			}
		}
		if resolved == "" {
			return nil, fmt.Errorf(errorUnknownMetaPrompt, trimmed)
		}
		ids = append(ids, resolved)
	}
	return ids, nil
}

func absolutePath(workingDirectory string, inputPath string) (string, error) {
	if !filepath.IsAbs(inputPath) {
		inputPath = filepath.Join(workingDirectory, inputPath)
	}
	absolute, err := filepath.Abs(inputPath)
	if err != nil {
		return "", fmt.Errorf(errorAbsolutePathFormat, inputPath, err)
	}
	return filepath.Clean(absolute), nil
}
