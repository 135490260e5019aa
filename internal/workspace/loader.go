// Package workspace lists workspace folders into tree nodes and flat file records.
//
// Loading comes in two modes. LoadTree walks every root recursively and is used for
// the full file index. LoadRoots and LoadChildren populate the tree one folder at a
// time; the loader remembers the handle, relative path and ignore scope of every
// folder it has reported so that a later LoadChildren call can resume from it.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/contextkit/internal/ignore"
	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

const (
	nodePathSeparator         = "/"
	errorUnknownFolderFormat  = "%w: %s"
	logMessageListingFailed   = "directory listing failed"
	logMessageLinkUnresolved  = "symbolic link unresolved"
	logMessageLinkCycle       = "symbolic link to an ancestor skipped"
	logFieldDirectory         = "directory"
	logFieldEntry             = "entry"
	logMessageTreeLoaded      = "workspace tree loaded"
	logFieldRootCount         = "roots"
	logFieldFileCount         = "files"
	logMessageChildrenLoaded  = "folder children loaded"
	logFieldFolder            = "folder"
	logFieldChildCount        = "children"
	logMessageRootUnavailable = "workspace root unavailable"
)

// ErrUnknownFolder is returned by LoadChildren for a path the loader has never reported.
var ErrUnknownFolder = errors.New("unknown folder")

// Options configures a Loader.
type Options struct {
	// RespectIgnore excludes ignored entries instead of flagging them.
	RespectIgnore bool
	// Concurrency bounds in-flight filesystem operations; zero selects the default.
	Concurrency int
}

// folderContext is what a lazy load needs to resume at a folder.
type folderContext struct {
	handle   filesystem.Handle
	relative string
	scope    *ignore.Scope
	// ancestors holds the resolved paths from the root down to the folder itself.
	ancestors []filesystem.Handle
}

// Loader lists directories through a FileSystem.
type Loader struct {
	fileSystem  filesystem.FileSystem
	resolver    *ignore.Resolver
	logger      *zap.Logger
	concurrency int
	limiter     *semaphore.Weighted

	mutex         sync.Mutex
	respectIgnore bool
	folders       map[string]folderContext
}

// NewLoader constructs a Loader. A nil resolver gets a fresh one over fileSystem.
func NewLoader(fileSystem filesystem.FileSystem, resolver *ignore.Resolver, logger *zap.Logger, options Options) *Loader {
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = utils.DefaultConcurrency
	}
	if resolver == nil {
		resolver = ignore.NewResolver(fileSystem, logger)
	}
	return &Loader{
		fileSystem:    fileSystem,
		resolver:      resolver,
		logger:        utils.LoggerOrNop(logger),
		concurrency:   concurrency,
		limiter:       semaphore.NewWeighted(int64(concurrency)),
		respectIgnore: options.RespectIgnore,
		folders:       map[string]folderContext{},
	}
}

// SetRespectIgnore switches between excluding and flagging ignored entries.
func (loader *Loader) SetRespectIgnore(respectIgnore bool) {
	loader.mutex.Lock()
	defer loader.mutex.Unlock()
	loader.respectIgnore = respectIgnore
}

// RespectIgnore reports the current ignore mode.
func (loader *Loader) RespectIgnore() bool {
	loader.mutex.Lock()
	defer loader.mutex.Unlock()
	return loader.respectIgnore
}

// Reset forgets every folder context and the ignore cache. It precedes a full reload.
func (loader *Loader) Reset() {
	loader.mutex.Lock()
	loader.folders = map[string]folderContext{}
	loader.mutex.Unlock()
	loader.resolver.Reset()
}

// LoadRoots registers the roots for lazy loading and returns one unloaded folder node per root.
func (loader *Loader) LoadRoots(roots []Root) []types.Node {
	nodes := make([]types.Node, 0, len(roots))
	for _, root := range roots {
		loader.remember(root.Label, folderContext{handle: root.Handle, scope: ignore.EmptyScope()})
		nodes = append(nodes, types.Node{
			Label:       root.Label,
			Path:        root.Label,
			Kind:        types.NodeKindFolder,
			HasChildren: true,
		})
	}
	return nodes
}

// LoadTree walks every root recursively. A root that cannot be listed yields no node.
// The returned file records follow tree order. Only context cancellation is reported
// as an error.
func (loader *Loader) LoadTree(ctx context.Context, roots []Root) (types.TreeData, error) {
	respectIgnore := loader.RespectIgnore()
	treeData := types.TreeData{Nodes: []types.Node{}, Files: []types.FileRecord{}}
	for _, root := range roots {
		ancestors := loader.rootAncestors(ctx, root.Handle)
		loader.remember(root.Label, folderContext{handle: root.Handle, scope: ignore.EmptyScope(), ancestors: ancestors})
		node, files, listed, loadError := loader.buildDirectory(ctx, directoryRequest{
			handle:        root.Handle,
			label:         root.Label,
			nodePath:      root.Label,
			scope:         ignore.EmptyScope(),
			ancestors:     ancestors,
			respectIgnore: respectIgnore,
			recursive:     true,
		})
		if loadError != nil {
			return types.TreeData{}, loadError
		}
		if !listed {
			loader.logger.Warn(logMessageRootUnavailable, zap.String(logFieldDirectory, string(root.Handle)))
			continue
		}
		treeData.Nodes = append(treeData.Nodes, node)
		treeData.Files = append(treeData.Files, files...)
	}
	loader.logger.Debug(logMessageTreeLoaded, zap.Int(logFieldRootCount, len(treeData.Nodes)), zap.Int(logFieldFileCount, len(treeData.Files)))
	return treeData, nil
}

// LoadChildren lists one level below a folder previously reported by LoadRoots, LoadTree
// or LoadChildren. Folder children come back unloaded, with HasChildren taken from a
// one-level listing. A folder that can no longer be listed yields no children and no error.
func (loader *Loader) LoadChildren(ctx context.Context, folderPath string) ([]types.Node, []types.FileRecord, error) {
	loader.mutex.Lock()
	folder, known := loader.folders[folderPath]
	respectIgnore := loader.respectIgnore
	loader.mutex.Unlock()
	if !known {
		return nil, nil, fmt.Errorf(errorUnknownFolderFormat, ErrUnknownFolder, folderPath)
	}
	if len(folder.ancestors) == 0 {
		folder.ancestors = loader.rootAncestors(ctx, folder.handle)
	}
	node, files, _, loadError := loader.buildDirectory(ctx, directoryRequest{
		handle:        folder.handle,
		label:         utils.BaseName(folderPath),
		nodePath:      folderPath,
		relative:      folder.relative,
		scope:         folder.scope,
		ancestors:     folder.ancestors,
		respectIgnore: respectIgnore,
	})
	if loadError != nil {
		return nil, nil, loadError
	}
	loader.logger.Debug(logMessageChildrenLoaded, zap.String(logFieldFolder, folderPath), zap.Int(logFieldChildCount, len(node.Children)))
	if node.Children == nil {
		node.Children = []types.Node{}
	}
	if files == nil {
		files = []types.FileRecord{}
	}
	return node.Children, files, nil
}

// KnownFolder reports whether LoadChildren can serve folderPath.
func (loader *Loader) KnownFolder(folderPath string) bool {
	loader.mutex.Lock()
	defer loader.mutex.Unlock()
	_, known := loader.folders[folderPath]
	return known
}

type directoryRequest struct {
	handle        filesystem.Handle
	label         string
	nodePath      string
	relative      string
	scope         *ignore.Scope
	ancestors     []filesystem.Handle
	respectIgnore bool
	recursive     bool
}

// childResult is one worker's output for one listed entry.
type childResult struct {
	present bool
	node    types.Node
	files   []types.FileRecord
}

// buildDirectory lists request.handle and returns its folder node. listed is false when the
// directory could not be listed; the caller then omits the node.
func (loader *Loader) buildDirectory(ctx context.Context, request directoryRequest) (types.Node, []types.FileRecord, bool, error) {
	entries, listError := loader.listDirectory(ctx, request.handle)
	if listError != nil {
		if ctxError := ctx.Err(); ctxError != nil {
			return types.Node{}, nil, false, ctxError
		}
		loader.logger.Debug(logMessageListingFailed, zap.String(logFieldDirectory, string(request.handle)), zap.Error(listError))
		return types.Node{}, nil, false, nil
	}
	scope, resolveError := loader.resolveScope(ctx, request, entries)
	if resolveError != nil {
		return types.Node{}, nil, false, resolveError
	}

	candidates := make([]filesystem.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == utils.GitDirectoryName {
			continue
		}
		candidates = append(candidates, entry)
	}

	results := make([]childResult, len(candidates))
	poolError := utils.ForEachBounded(ctx, len(candidates), loader.concurrency, func(workerCtx context.Context, index int) error {
		result, childError := loader.buildChild(workerCtx, request, scope, candidates[index])
		if childError != nil {
			return childError
		}
		results[index] = result
		return nil
	})
	if poolError != nil {
		return types.Node{}, nil, false, poolError
	}

	present := make([]childResult, 0, len(results))
	for _, result := range results {
		if result.present {
			present = append(present, result)
		}
	}
	sort.SliceStable(present, func(left, right int) bool {
		return lessNode(present[left].node, present[right].node)
	})

	node := types.Node{
		Label:       request.label,
		Path:        request.nodePath,
		Kind:        types.NodeKindFolder,
		Loaded:      true,
		HasChildren: len(present) > 0,
		Children:    make([]types.Node, 0, len(present)),
	}
	var files []types.FileRecord
	for _, result := range present {
		node.Children = append(node.Children, result.node)
		files = append(files, result.files...)
	}
	return node, files, true, nil
}

func (loader *Loader) buildChild(ctx context.Context, request directoryRequest, scope *ignore.Scope, entry filesystem.DirEntry) (childResult, error) {
	childHandle := loader.fileSystem.Join(request.handle, entry.Name)
	kind := entry.Kind
	if entry.IsSymlink {
		info, statError := loader.statEntry(ctx, childHandle)
		if statError != nil {
			if ctxError := ctx.Err(); ctxError != nil {
				return childResult{}, ctxError
			}
			loader.logger.Debug(logMessageLinkUnresolved, zap.String(logFieldEntry, string(childHandle)), zap.Error(statError))
			return childResult{}, nil
		}
		kind = info.Kind
	}
	if kind != filesystem.KindDirectory && kind != filesystem.KindFile {
		return childResult{}, nil
	}

	childRelative := utils.JoinRelative(request.relative, entry.Name)
	childPath := request.nodePath + nodePathSeparator + entry.Name
	isDirectory := kind == filesystem.KindDirectory
	isIgnored := scope.Matches(childRelative, isDirectory)
	if isIgnored && request.respectIgnore {
		return childResult{}, nil
	}

	if !isDirectory {
		return childResult{
			present: true,
			node:    types.Node{Label: entry.Name, Path: childPath, Kind: types.NodeKindFile, Ignored: isIgnored},
			files:   []types.FileRecord{{Path: childPath, Handle: childHandle}},
		}, nil
	}

	childAncestors, skip, resolveError := loader.childAncestors(ctx, request.ancestors, childHandle, entry)
	if resolveError != nil || skip {
		return childResult{}, resolveError
	}
	childContext := folderContext{handle: childHandle, relative: childRelative, scope: scope, ancestors: childAncestors}
	if request.recursive {
		childNode, childFiles, listed, childError := loader.buildDirectory(ctx, directoryRequest{
			handle:        childHandle,
			label:         entry.Name,
			nodePath:      childPath,
			relative:      childRelative,
			scope:         scope,
			ancestors:     childAncestors,
			respectIgnore: request.respectIgnore,
			recursive:     true,
		})
		if childError != nil || !listed {
			return childResult{}, childError
		}
		loader.remember(childPath, childContext)
		childNode.Ignored = isIgnored
		return childResult{present: true, node: childNode, files: childFiles}, nil
	}

	hasChildren, listed, listError := loader.visibleChildren(ctx, directoryRequest{
		handle:        childHandle,
		relative:      childRelative,
		scope:         scope,
		respectIgnore: request.respectIgnore,
	})
	if listError != nil || !listed {
		return childResult{}, listError
	}
	loader.remember(childPath, childContext)
	return childResult{
		present: true,
		node: types.Node{
			Label:       entry.Name,
			Path:        childPath,
			Kind:        types.NodeKindFolder,
			Ignored:     isIgnored,
			HasChildren: hasChildren,
		},
	}, nil
}

// visibleChildren lists a folder only to learn whether it would show any child. The VCS
// directory never counts, and with respect-ignore on neither do ignored entries. Links are
// tested as files.
func (loader *Loader) visibleChildren(ctx context.Context, request directoryRequest) (bool, bool, error) {
	entries, listError := loader.listDirectory(ctx, request.handle)
	if listError != nil {
		if ctxError := ctx.Err(); ctxError != nil {
			return false, false, ctxError
		}
		loader.logger.Debug(logMessageListingFailed, zap.String(logFieldDirectory, string(request.handle)), zap.Error(listError))
		return false, false, nil
	}
	scope := request.scope
	if request.respectIgnore {
		resolved, resolveError := loader.resolveScope(ctx, request, entries)
		if resolveError != nil {
			return false, false, resolveError
		}
		scope = resolved
	}
	for _, entry := range entries {
		if entry.Name == utils.GitDirectoryName {
			continue
		}
		if request.respectIgnore && scope.Matches(utils.JoinRelative(request.relative, entry.Name), entry.Kind == filesystem.KindDirectory) {
			continue
		}
		return true, true, nil
	}
	return false, true, nil
}

// rootAncestors starts the resolved ancestor chain at a root. An unresolvable root keeps its handle.
func (loader *Loader) rootAncestors(ctx context.Context, handle filesystem.Handle) []filesystem.Handle {
	resolved, resolveError := loader.realPath(ctx, handle)
	if resolveError != nil {
		return []filesystem.Handle{handle}
	}
	return []filesystem.Handle{resolved}
}

// childAncestors extends the chain with a child folder. A linked folder is resolved; skip is
// set when it cannot be resolved or points at a folder already on the chain.
func (loader *Loader) childAncestors(ctx context.Context, ancestors []filesystem.Handle, childHandle filesystem.Handle, entry filesystem.DirEntry) ([]filesystem.Handle, bool, error) {
	var resolved filesystem.Handle
	switch {
	case entry.IsSymlink || len(ancestors) == 0:
		realPath, resolveError := loader.realPath(ctx, childHandle)
		if resolveError != nil {
			if ctxError := ctx.Err(); ctxError != nil {
				return nil, false, ctxError
			}
			loader.logger.Debug(logMessageLinkUnresolved, zap.String(logFieldEntry, string(childHandle)), zap.Error(resolveError))
			return nil, true, nil
		}
		resolved = realPath
	default:
		resolved = loader.fileSystem.Join(ancestors[len(ancestors)-1], entry.Name)
	}
	if slices.Contains(ancestors, resolved) {
		loader.logger.Debug(logMessageLinkCycle, zap.String(logFieldEntry, string(childHandle)), zap.String(logFieldDirectory, string(resolved)))
		return nil, true, nil
	}
	chain := make([]filesystem.Handle, 0, len(ancestors)+1)
	chain = append(chain, ancestors...)
	return append(chain, resolved), false, nil
}

func (loader *Loader) listDirectory(ctx context.Context, handle filesystem.Handle) ([]filesystem.DirEntry, error) {
	if acquireError := loader.limiter.Acquire(ctx, 1); acquireError != nil {
		return nil, acquireError
	}
	defer loader.limiter.Release(1)
	return loader.fileSystem.ReadDir(ctx, handle)
}

// resolveScope holds one limiter slot while the resolver reads the directory's .gitignore.
func (loader *Loader) resolveScope(ctx context.Context, request directoryRequest, entries []filesystem.DirEntry) (*ignore.Scope, error) {
	if acquireError := loader.limiter.Acquire(ctx, 1); acquireError != nil {
		return nil, acquireError
	}
	defer loader.limiter.Release(1)
	return loader.resolver.Resolve(ctx, request.handle, entries, request.scope, request.relative), nil
}

func (loader *Loader) realPath(ctx context.Context, handle filesystem.Handle) (filesystem.Handle, error) {
	if acquireError := loader.limiter.Acquire(ctx, 1); acquireError != nil {
		return "", acquireError
	}
	defer loader.limiter.Release(1)
	return loader.fileSystem.RealPath(ctx, handle)
}

func (loader *Loader) statEntry(ctx context.Context, handle filesystem.Handle) (filesystem.FileInfo, error) {
	if acquireError := loader.limiter.Acquire(ctx, 1); acquireError != nil {
		return filesystem.FileInfo{}, acquireError
	}
	defer loader.limiter.Release(1)
	return loader.fileSystem.Stat(ctx, handle)
}

func (loader *Loader) remember(folderPath string, folder folderContext) {
	loader.mutex.Lock()
	defer loader.mutex.Unlock()
	loader.folders[folderPath] = folder
}

// lessNode orders folders before files, then names case-insensitively.
func lessNode(left types.Node, right types.Node) bool {
	if left.IsFolder() != right.IsFolder() {
		return left.IsFolder()
	}
	return utils.CompareNames(left.Label, right.Label) < 0
}
