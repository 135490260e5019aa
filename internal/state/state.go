// Package state owns the tree, file table, selection and expansion of one session.
//
// Nodes live in an arena addressed by path; a folder's children are stored as a list
// of paths. State is not safe for concurrent use: a single owner applies every
// mutation, and asynchronous results are folded in serially.
package state

import (
	"sort"
	"strings"

	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

const nodePathSeparator = "/"

// Defaults seeds the session flags of a new State.
type Defaults struct {
	RespectIgnore       bool
	IncludePrompt       bool
	IncludeSavedPrompts bool
	IncludeFiles        bool
}

// DefaultSettings mirrors the defaults of a fresh session.
func DefaultSettings() Defaults {
	return Defaults{RespectIgnore: true, IncludePrompt: true, IncludeSavedPrompts: true, IncludeFiles: true}
}

type arenaNode struct {
	node     types.Node
	children []string
}

// State is the single-owner session state.
type State struct {
	roots []string
	nodes map[string]*arenaNode

	files     map[string]types.FileRecord
	fileOrder []string

	selected    []string
	selectedSet map[string]struct{}
	expanded    map[string]struct{}
	pending     map[string]bool
	inFlight    map[string]struct{}

	respectIgnore         bool
	prompt                string
	includePrompt         bool
	includeSavedPrompts   bool
	includeFiles          bool
	metaPrompts           []types.MetaPrompt
	selectedMetaPromptIDs []string
	viewMode              string
}

// New constructs an empty State.
func New(defaults Defaults) *State {
	return &State{
		nodes:               map[string]*arenaNode{},
		files:               map[string]types.FileRecord{},
		selectedSet:         map[string]struct{}{},
		expanded:            map[string]struct{}{},
		pending:             map[string]bool{},
		inFlight:            map[string]struct{}{},
		respectIgnore:       defaults.RespectIgnore,
		includePrompt:       defaults.IncludePrompt,
		includeSavedPrompts: defaults.IncludeSavedPrompts,
		includeFiles:        defaults.IncludeFiles,
		viewMode:            types.ViewModeMain,
	}
}

// SetRoots replaces the arena with nodes without touching expansion. Pending folder
// selections and in-flight child requests belong to the previous tree and are dropped.
func (state *State) SetRoots(nodes []types.Node) {
	state.roots = nil
	state.nodes = map[string]*arenaNode{}
	state.pending = map[string]bool{}
	state.inFlight = map[string]struct{}{}
	for _, node := range nodes {
		state.insert(node)
		state.roots = append(state.roots, node.Path)
	}
}

// ReplaceTree replaces the arena with a fully loaded tree and prunes expansion against it.
func (state *State) ReplaceTree(nodes []types.Node) {
	state.SetRoots(nodes)
	state.PruneExpandedAgainstTree(nodes)
}

// ApplyChildren stores the children of a lazily loaded folder, merges their file records and
// consumes any pending selection recorded for the folder. It returns the folders whose
// children must be requested next: unloaded descendants inheriting the pending selection
// and expanded child folders. Unknown folders are ignored.
func (state *State) ApplyChildren(folderPath string, children []types.Node, files []types.FileRecord) []string {
	delete(state.inFlight, folderPath)
	folder, known := state.nodes[folderPath]
	if !known || !folder.node.IsFolder() {
		return nil
	}
	state.removeDescendants(folderPath)
	folder.children = folder.children[:0]
	for _, child := range children {
		state.insert(child)
		folder.children = append(folder.children, child.Path)
	}
	folder.node.Loaded = true
	folder.node.HasChildren = len(children) > 0
	state.AddFiles(files)

	var foldersToLoad []string
	if desired, hasPending := state.pending[folderPath]; hasPending {
		delete(state.pending, folderPath)
		var selectionChanges []string
		state.applyFolderSelection(folderPath, desired, &selectionChanges, &foldersToLoad)
		state.setSelected(selectionChanges, desired)
	}
	for _, childPath := range folder.children {
		if _, isExpanded := state.expanded[childPath]; isExpanded && state.needsChildren(childPath) {
			foldersToLoad = append(foldersToLoad, childPath)
		}
	}
	return utils.DeduplicateStrings(foldersToLoad)
}

// SetFiles replaces the file table and drops selected paths it no longer contains.
func (state *State) SetFiles(records []types.FileRecord) {
	previous := state.files
	state.files = make(map[string]types.FileRecord, len(records))
	state.fileOrder = make([]string, 0, len(records))
	for _, record := range records {
		state.storeFile(record, previous)
	}
	state.filterSelection()
}

// AddFiles merges records into the file table, keeping cached sizes of known paths.
func (state *State) AddFiles(records []types.FileRecord) {
	for _, record := range records {
		state.storeFile(record, state.files)
	}
	state.filterSelection()
}

// SetSelection replaces the selection with the known paths among paths, in the given order.
func (state *State) SetSelection(paths []string) {
	state.selected = nil
	state.selectedSet = map[string]struct{}{}
	state.setSelected(paths, true)
}

// ToggleSelection selects or deselects a file, or every file beneath a folder. Unloaded
// folders beneath the target record a pending selection; their paths are returned so the
// owner can request their children.
func (state *State) ToggleSelection(targetPath string, selected bool) []string {
	if _, isFile := state.files[targetPath]; isFile {
		state.setSelected([]string{targetPath}, selected)
		return nil
	}
	if _, known := state.nodes[targetPath]; !known {
		return nil
	}
	var selectionChanges, foldersToLoad []string
	state.applyFolderSelection(targetPath, selected, &selectionChanges, &foldersToLoad)
	state.setSelected(selectionChanges, selected)
	return utils.DeduplicateStrings(foldersToLoad)
}

// SelectAll selects every file currently in the file table.
func (state *State) SelectAll() {
	state.setSelected(state.fileOrder, true)
}

// ClearSelection empties the selection.
func (state *State) ClearSelection() {
	state.selected = nil
	state.selectedSet = map[string]struct{}{}
}

// SetExpanded replaces the expansion set.
func (state *State) SetExpanded(paths []string) {
	state.expanded = make(map[string]struct{}, len(paths))
	for _, expandedPath := range paths {
		state.expanded[expandedPath] = struct{}{}
	}
}

// ToggleExpanded expands or collapses a folder and reports whether its children must be requested.
func (state *State) ToggleExpanded(folderPath string, expanded bool) bool {
	if !expanded {
		delete(state.expanded, folderPath)
		return false
	}
	state.expanded[folderPath] = struct{}{}
	return state.needsChildren(folderPath)
}

// ClearExpanded empties the expansion set.
func (state *State) ClearExpanded() {
	state.expanded = map[string]struct{}{}
}

// PruneExpandedAgainstTree drops expanded paths that are not folders reachable in nodes.
// Unloaded folders are reachable themselves but their children are not visited.
func (state *State) PruneExpandedAgainstTree(nodes []types.Node) {
	available := map[string]struct{}{}
	var visit func([]types.Node)
	visit = func(current []types.Node) {
		for _, node := range current {
			if !node.IsFolder() {
				continue
			}
			available[node.Path] = struct{}{}
			visit(node.Children)
		}
	}
	visit(nodes)
	for expandedPath := range state.expanded {
		if _, present := available[expandedPath]; !present {
			delete(state.expanded, expandedPath)
		}
	}
}

// ExpandedFoldersToLoad lists expanded folders in the arena whose children were never loaded.
func (state *State) ExpandedFoldersToLoad() []string {
	var foldersToLoad []string
	for expandedPath := range state.expanded {
		if state.needsChildren(expandedPath) {
			foldersToLoad = append(foldersToLoad, expandedPath)
		}
	}
	sort.Strings(foldersToLoad)
	return foldersToLoad
}

// GetSelectionEntries returns the selected file records in selection order.
func (state *State) GetSelectionEntries() []types.FileRecord {
	entries := make([]types.FileRecord, 0, len(state.selected))
	for _, selectedPath := range state.selected {
		if record, known := state.files[selectedPath]; known {
			entries = append(entries, record)
		}
	}
	return entries
}

// SelectedPaths returns the selected paths in selection order.
func (state *State) SelectedPaths() []string {
	return append([]string{}, state.selected...)
}

// GetExpandedPaths returns the expanded folder paths sorted.
func (state *State) GetExpandedPaths() []string {
	paths := make([]string, 0, len(state.expanded))
	for expandedPath := range state.expanded {
		paths = append(paths, expandedPath)
	}
	sort.Strings(paths)
	return paths
}

// IsExpanded reports whether folderPath is expanded.
func (state *State) IsExpanded(folderPath string) bool {
	_, expanded := state.expanded[folderPath]
	return expanded
}

// IsSelected reports whether a file path is selected.
func (state *State) IsSelected(filePath string) bool {
	_, selected := state.selectedSet[filePath]
	return selected
}

// Files returns the file table in discovery order.
func (state *State) Files() []types.FileRecord {
	records := make([]types.FileRecord, 0, len(state.fileOrder))
	for _, filePath := range state.fileOrder {
		records = append(records, state.files[filePath])
	}
	return records
}

// FileCount returns the size of the file table.
func (state *State) FileCount() int {
	return len(state.files)
}

// FileRecord looks a file up by path.
func (state *State) FileRecord(filePath string) (types.FileRecord, bool) {
	record, known := state.files[filePath]
	return record, known
}

// RecordSizes caches stat results on file records.
func (state *State) RecordSizes(sizes map[string]int64) {
	for filePath, size := range sizes {
		record, known := state.files[filePath]
		if !known {
			continue
		}
		record.SetSize(size)
		state.files[filePath] = record
	}
}

// BeginChildrenRequest marks folderPath as loading. It returns false when a request is
// already outstanding for it.
func (state *State) BeginChildrenRequest(folderPath string) bool {
	if _, loading := state.inFlight[folderPath]; loading {
		return false
	}
	state.inFlight[folderPath] = struct{}{}
	return true
}

// FinishChildrenRequest clears the loading mark without applying children.
func (state *State) FinishChildrenRequest(folderPath string) {
	delete(state.inFlight, folderPath)
}

// IsLoadingChildren reports whether a children request is outstanding for folderPath.
func (state *State) IsLoadingChildren(folderPath string) bool {
	_, loading := state.inFlight[folderPath]
	return loading
}

// FolderSelection derives the tri-state of a folder from its loaded descendant files.
// An unloaded folder with a pending selection reports that selection.
func (state *State) FolderSelection(folderPath string) types.TriState {
	totalFiles, selectedFiles := state.countSelection(folderPath)
	return triState(totalFiles, selectedFiles, state.pendingFor(folderPath))
}

// Node returns one node with its tri-state filled in; folder children are not included.
func (state *State) Node(nodePath string) (types.Node, bool) {
	entry, known := state.nodes[nodePath]
	if !known {
		return types.Node{}, false
	}
	node := entry.node
	node.Selection = state.nodeSelection(entry)
	return node, true
}

// Nodes materializes the arena as a tree with every node's tri-state filled in.
func (state *State) Nodes() []types.Node {
	nodes := make([]types.Node, 0, len(state.roots))
	for _, rootPath := range state.roots {
		node, _, _ := state.materialize(rootPath)
		nodes = append(nodes, node)
	}
	return nodes
}

// Snapshot returns the presentation state.
func (state *State) Snapshot() types.UIState {
	return types.UIState{
		Nodes:                 state.Nodes(),
		Selection:             state.SelectedPaths(),
		Expanded:              state.GetExpandedPaths(),
		RespectIgnore:         state.respectIgnore,
		Prompt:                state.prompt,
		IncludePrompt:         state.includePrompt,
		IncludeSavedPrompts:   state.includeSavedPrompts,
		IncludeFiles:          state.includeFiles,
		MetaPrompts:           append([]types.MetaPrompt{}, state.metaPrompts...),
		SelectedMetaPromptIDs: state.SelectedMetaPromptIDs(),
		ViewMode:              state.viewMode,
	}
}

func (state *State) insert(node types.Node) {
	entry := &arenaNode{node: node}
	entry.node.Children = nil
	if node.IsFolder() && node.Loaded {
		entry.children = make([]string, 0, len(node.Children))
		for _, child := range node.Children {
			state.insert(child)
			entry.children = append(entry.children, child.Path)
		}
	}
	state.nodes[node.Path] = entry
}

func (state *State) removeDescendants(folderPath string) {
	folder, known := state.nodes[folderPath]
	if !known {
		return
	}
	for _, childPath := range folder.children {
		state.removeDescendants(childPath)
		delete(state.nodes, childPath)
	}
}

func (state *State) storeFile(record types.FileRecord, previous map[string]types.FileRecord) {
	if existing, known := previous[record.Path]; known && !record.HasSize() && existing.HasSize() && existing.Handle == record.Handle {
		record.Size = existing.Size
	}
	if _, alreadyStored := state.files[record.Path]; !alreadyStored {
		state.fileOrder = append(state.fileOrder, record.Path)
	}
	state.files[record.Path] = record
}

func (state *State) filterSelection() {
	retained := state.selected[:0]
	for _, selectedPath := range state.selected {
		if _, known := state.files[selectedPath]; known {
			retained = append(retained, selectedPath)
			continue
		}
		delete(state.selectedSet, selectedPath)
	}
	state.selected = retained
}

// setSelected adds or removes paths; only paths in the file table are added.
func (state *State) setSelected(paths []string, selected bool) {
	if !selected {
		removed := map[string]struct{}{}
		for _, removedPath := range paths {
			if _, isSelected := state.selectedSet[removedPath]; isSelected {
				removed[removedPath] = struct{}{}
				delete(state.selectedSet, removedPath)
			}
		}
		if len(removed) == 0 {
			return
		}
		retained := state.selected[:0]
		for _, selectedPath := range state.selected {
			if _, isRemoved := removed[selectedPath]; !isRemoved {
				retained = append(retained, selectedPath)
			}
		}
		state.selected = retained
		return
	}
	for _, addedPath := range paths {
		if _, known := state.files[addedPath]; !known {
			continue
		}
		if _, isSelected := state.selectedSet[addedPath]; isSelected {
			continue
		}
		state.selectedSet[addedPath] = struct{}{}
		state.selected = append(state.selected, addedPath)
	}
}

// applyFolderSelection walks the loaded part of a subtree, collecting file paths and
// recording pending selections on unloaded folders that may hold children.
func (state *State) applyFolderSelection(nodePath string, selected bool, selectionChanges *[]string, foldersToLoad *[]string) {
	entry, known := state.nodes[nodePath]
	if !known {
		return
	}
	if !entry.node.IsFolder() {
		*selectionChanges = append(*selectionChanges, nodePath)
		return
	}
	if !entry.node.Loaded {
		if entry.node.HasChildren {
			state.pending[nodePath] = selected
			*foldersToLoad = append(*foldersToLoad, nodePath)
		}
		return
	}
	for _, childPath := range entry.children {
		state.applyFolderSelection(childPath, selected, selectionChanges, foldersToLoad)
	}
}

func (state *State) needsChildren(folderPath string) bool {
	entry, known := state.nodes[folderPath]
	return known && entry.node.IsFolder() && !entry.node.Loaded && entry.node.HasChildren
}

func (state *State) pendingFor(folderPath string) *bool {
	desired, hasPending := state.pending[folderPath]
	if !hasPending {
		return nil
	}
	return &desired
}

// countSelection counts loaded descendant files of a node and how many are selected.
func (state *State) countSelection(nodePath string) (int, int) {
	entry, known := state.nodes[nodePath]
	if !known {
		return 0, 0
	}
	if !entry.node.IsFolder() {
		if state.IsSelected(nodePath) {
			return 1, 1
		}
		return 1, 0
	}
	totalFiles, selectedFiles := 0, 0
	for _, childPath := range entry.children {
		childTotal, childSelected := state.countSelection(childPath)
		totalFiles += childTotal
		selectedFiles += childSelected
	}
	return totalFiles, selectedFiles
}

func (state *State) nodeSelection(entry *arenaNode) types.TriState {
	if !entry.node.IsFolder() {
		if state.IsSelected(entry.node.Path) {
			return types.TriStateFull
		}
		return types.TriStateNone
	}
	return state.FolderSelection(entry.node.Path)
}

// materialize builds the subtree at nodePath, returning the node with its file counts.
func (state *State) materialize(nodePath string) (types.Node, int, int) {
	entry := state.nodes[nodePath]
	node := entry.node
	if !node.IsFolder() {
		node.Selection = state.nodeSelection(entry)
		if node.Selection == types.TriStateFull {
			return node, 1, 1
		}
		return node, 1, 0
	}
	totalFiles, selectedFiles := 0, 0
	if node.Loaded {
		node.Children = make([]types.Node, 0, len(entry.children))
		for _, childPath := range entry.children {
			child, childTotal, childSelected := state.materialize(childPath)
			node.Children = append(node.Children, child)
			totalFiles += childTotal
			selectedFiles += childSelected
		}
	}
	node.Selection = triState(totalFiles, selectedFiles, state.pendingFor(nodePath))
	return node, totalFiles, selectedFiles
}

func triState(totalFiles int, selectedFiles int, pending *bool) types.TriState {
	switch {
	case totalFiles == 0 && pending != nil && *pending:
		return types.TriStateFull
	case totalFiles == 0:
		return types.TriStateNone
	case selectedFiles == totalFiles:
		return types.TriStateFull
	case selectedFiles > 0:
		return types.TriStatePartial
	default:
		return types.TriStateNone
	}
}

// ParentPath returns the path of the folder holding nodePath, or "" for a root.
func ParentPath(nodePath string) string {
	separatorIndex := strings.LastIndex(nodePath, nodePathSeparator)
	if separatorIndex < 0 {
		return utils.EmptyString
	}
	return nodePath[:separatorIndex]
}
