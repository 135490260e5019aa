package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
	"github.com/temirov/contextkit/internal/workspace"
)

const workspaceRootHandle = "/ws"

func newWorkspaceRoots() []workspace.Root {
	return []workspace.Root{{Label: "ws", Handle: workspaceRootHandle}}
}

func collectPaths(nodes []types.Node) []string {
	var paths []string
	var walk func([]types.Node)
	walk = func(current []types.Node) {
		for _, node := range current {
			paths = append(paths, node.Path)
			walk(node.Children)
		}
	}
	walk(nodes)
	return paths
}

func findNode(nodes []types.Node, nodePath string) (types.Node, bool) {
	for _, node := range nodes {
		if node.Path == nodePath {
			return node, true
		}
		if found, ok := findNode(node.Children, nodePath); ok {
			return found, true
		}
	}
	return types.Node{}, false
}

func assertSorted(testingHandle *testing.T, nodes []types.Node) {
	testingHandle.Helper()
	for index := 1; index < len(nodes); index++ {
		previous, current := nodes[index-1], nodes[index]
		if previous.IsFolder() != current.IsFolder() {
			if !previous.IsFolder() {
				testingHandle.Fatalf("file %s listed before folder %s", previous.Path, current.Path)
			}
			continue
		}
		if utils.CompareNames(previous.Label, current.Label) > 0 {
			testingHandle.Fatalf("%s listed before %s", previous.Label, current.Label)
		}
	}
	for _, node := range nodes {
		assertSorted(testingHandle, node.Children)
	}
}

// TestLoadTreeOrdering verifies folders-first, case-insensitive ordering at every level.
func TestLoadTreeOrdering(testingHandle *testing.T) {
	memory := filesystem.NewMemory().
		AddFile("/ws/b.txt", "b").
		AddFile("/ws/A.txt", "a").
		AddFile("/ws/zeta/Beta.go", "x").
		AddFile("/ws/zeta/alpha.go", "x").
		AddDirectory("/ws/Alpha").
		AddFile("/ws/.git/HEAD", "ref").
		AddFile("/ws/c.md", "c")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{RespectIgnore: true})

	treeData, loadError := loader.LoadTree(context.Background(), newWorkspaceRoots())
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	if len(treeData.Nodes) != 1 {
		testingHandle.Fatalf("expected one root, got %d", len(treeData.Nodes))
	}
	assertSorted(testingHandle, treeData.Nodes)

	expectedPaths := []string{"ws", "ws/Alpha", "ws/zeta", "ws/zeta/alpha.go", "ws/zeta/Beta.go", "ws/A.txt", "ws/b.txt", "ws/c.md"}
	if actual := collectPaths(treeData.Nodes); !reflect.DeepEqual(actual, expectedPaths) {
		testingHandle.Fatalf("expected %v, got %v", expectedPaths, actual)
	}
	expectedFiles := []string{"ws/zeta/alpha.go", "ws/zeta/Beta.go", "ws/A.txt", "ws/b.txt", "ws/c.md"}
	var actualFiles []string
	for _, record := range treeData.Files {
		actualFiles = append(actualFiles, record.Path)
	}
	if !reflect.DeepEqual(actualFiles, expectedFiles) {
		testingHandle.Fatalf("expected files %v, got %v", expectedFiles, actualFiles)
	}
	if treeData.Files[0].Handle != "/ws/zeta/alpha.go" {
		testingHandle.Fatalf("unexpected handle %s", treeData.Files[0].Handle)
	}
}

// TestLoadTreeIgnoreModes verifies exclusion with respect-ignore on and flagging with it off.
func TestLoadTreeIgnoreModes(testingHandle *testing.T) {
	newMemory := func() *filesystem.Memory {
		return filesystem.NewMemory().
			AddFile("/ws/.gitignore", "*.log\n").
			AddFile("/ws/app.log", "log").
			AddFile("/ws/main.go", "package main").
			AddFile("/ws/a/b/.gitignore", "build/\n").
			AddFile("/ws/a/b/build/out.js", "x").
			AddFile("/ws/a/b/src.go", "x").
			AddFile("/ws/build/keep.js", "x").
			AddFile("/ws/sub/.gitignore", "!keep.log\n").
			AddFile("/ws/sub/keep.log", "x").
			AddFile("/ws/sub/drop.log", "x")
	}

	respecting := workspace.NewLoader(newMemory(), nil, nil, workspace.Options{RespectIgnore: true})
	treeData, _ := respecting.LoadTree(context.Background(), newWorkspaceRoots())
	for _, absentPath := range []string{"ws/app.log", "ws/a/b/build", "ws/a/b/build/out.js", "ws/sub/drop.log"} {
		if _, found := findNode(treeData.Nodes, absentPath); found {
			testingHandle.Errorf("expected %s to be excluded", absentPath)
		}
	}
	for _, presentPath := range []string{"ws/main.go", "ws/build", "ws/build/keep.js", "ws/a/b/src.go", "ws/sub/keep.log"} {
		if _, found := findNode(treeData.Nodes, presentPath); !found {
			testingHandle.Errorf("expected %s to be present", presentPath)
		}
	}

	flagging := workspace.NewLoader(newMemory(), nil, nil, workspace.Options{RespectIgnore: false})
	flaggedData, _ := flagging.LoadTree(context.Background(), newWorkspaceRoots())
	for _, flaggedPath := range []string{"ws/app.log", "ws/a/b/build", "ws/sub/drop.log"} {
		node, found := findNode(flaggedData.Nodes, flaggedPath)
		if !found || !node.Ignored {
			testingHandle.Errorf("expected %s to be present and flagged, found=%t", flaggedPath, found)
		}
	}
	for _, cleanPath := range []string{"ws/main.go", "ws/build", "ws/sub/keep.log"} {
		node, found := findNode(flaggedData.Nodes, cleanPath)
		if !found || node.Ignored {
			testingHandle.Errorf("expected %s to be present and not flagged", cleanPath)
		}
	}
}

func filePaths(records []types.FileRecord) []string {
	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}
	sort.Strings(paths)
	return paths
}

// TestLoadTreeGitignoreSemantics verifies directory scoping for names holding pattern
// metacharacters, glob wildcards and anchored patterns.
func TestLoadTreeGitignoreSemantics(testingHandle *testing.T) {
	testCases := []struct {
		name          string
		memory        *filesystem.Memory
		expectedFiles []string
	}{
		{
			name: "plus signs in directory name",
			memory: filesystem.NewMemory().
				AddFile("/ws/c++/.gitignore", "build/\n*.log").
				AddFile("/ws/c++/build/out.bin", "x").
				AddFile("/ws/c++/debug.log", "x").
				AddFile("/ws/c++/keep.go", "x"),
			expectedFiles: []string{"ws/c++/.gitignore", "ws/c++/keep.go"},
		},
		{
			name: "plus between letters",
			memory: filesystem.NewMemory().
				AddFile("/ws/a+b/.gitignore", "build/\n*.log").
				AddFile("/ws/a+b/build/out.bin", "x").
				AddFile("/ws/a+b/debug.log", "x").
				AddFile("/ws/a+b/keep.go", "x"),
			expectedFiles: []string{"ws/a+b/.gitignore", "ws/a+b/keep.go"},
		},
		{
			name: "parentheses in directory name",
			memory: filesystem.NewMemory().
				AddFile("/ws/(gen)/.gitignore", "build/\n*.log").
				AddFile("/ws/(gen)/build/out.bin", "x").
				AddFile("/ws/(gen)/debug.log", "x").
				AddFile("/ws/(gen)/keep.go", "x"),
			expectedFiles: []string{"ws/(gen)/.gitignore", "ws/(gen)/keep.go"},
		},
		{
			name: "single character wildcard and class",
			memory: filesystem.NewMemory().
				AddFile("/ws/.gitignore", "file?.txt\nlog[0-9].txt").
				AddFile("/ws/file1.txt", "x").
				AddFile("/ws/log3.txt", "x").
				AddFile("/ws/keep.go", "x"),
			expectedFiles: []string{"ws/.gitignore", "ws/keep.go"},
		},
		{
			name: "anchored pattern stays at its directory",
			memory: filesystem.NewMemory().
				AddFile("/ws/a/.gitignore", "/build").
				AddFile("/ws/a/build/x.txt", "x").
				AddFile("/ws/a/sub/a/build/y.txt", "y"),
			expectedFiles: []string{"ws/a/.gitignore", "ws/a/sub/a/build/y.txt"},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			loader := workspace.NewLoader(testCase.memory, nil, nil, workspace.Options{RespectIgnore: true})
			treeData, loadError := loader.LoadTree(context.Background(), newWorkspaceRoots())
			if loadError != nil {
				testingHandle.Fatalf("unexpected error: %v", loadError)
			}
			if actual := filePaths(treeData.Files); !reflect.DeepEqual(actual, testCase.expectedFiles) {
				testingHandle.Fatalf("expected %v, got %v", testCase.expectedFiles, actual)
			}
		})
	}
}

// TestLoadTreeSkipsLinkCycles verifies links back to an ancestor folder are left out in both modes.
func TestLoadTreeSkipsLinkCycles(testingHandle *testing.T) {
	memory := filesystem.NewMemory().
		AddFile("/ws/a.txt", "a").
		AddFile("/ws/sub/b.txt", "b").
		AddSymlink("/ws/loop", "/ws").
		AddSymlink("/ws/loop2", "/ws").
		AddSymlink("/ws/sub/up", "/ws").
		AddFile("/other/c.txt", "c").
		AddSymlink("/ws/other", "/other").
		AddSymlink("/other/back", "/ws")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{RespectIgnore: true})
	treeData, loadError := loader.LoadTree(context.Background(), newWorkspaceRoots())
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	expectedFiles := []string{"ws/a.txt", "ws/other/c.txt", "ws/sub/b.txt"}
	if actual := filePaths(treeData.Files); !reflect.DeepEqual(actual, expectedFiles) {
		testingHandle.Fatalf("expected %v, got %v", expectedFiles, actual)
	}

	loader.Reset()
	loader.LoadRoots(newWorkspaceRoots())
	children, _, childrenError := loader.LoadChildren(context.Background(), "ws")
	if childrenError != nil {
		testingHandle.Fatalf("unexpected error: %v", childrenError)
	}
	for _, child := range children {
		if child.Path == "ws/loop" || child.Path == "ws/loop2" {
			testingHandle.Fatalf("expected the looping link %s to be skipped lazily too", child.Path)
		}
	}
}

// TestLoadTreeSkipsLinkCyclesOnDisk verifies self-referencing links on the local disk finish promptly.
func TestLoadTreeSkipsLinkCyclesOnDisk(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	if writeError := os.WriteFile(filepath.Join(rootDirectory, "a.txt"), []byte("a"), 0o600); writeError != nil {
		testingHandle.Fatalf("write fixture: %v", writeError)
	}
	for _, linkName := range []string{"loop", "loop2"} {
		if linkError := os.Symlink(".", filepath.Join(rootDirectory, linkName)); linkError != nil {
			testingHandle.Skipf("symbolic links unavailable: %v", linkError)
		}
	}
	loader := workspace.NewLoader(filesystem.NewOS(), nil, nil, workspace.Options{RespectIgnore: true})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	treeData, loadError := loader.LoadTree(ctx, []workspace.Root{{Label: "ws", Handle: filesystem.Handle(rootDirectory)}})
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	if actual := filePaths(treeData.Files); !reflect.DeepEqual(actual, []string{"ws/a.txt"}) {
		testingHandle.Fatalf("expected a single file, got %v", actual)
	}
}

// TestLoadChildrenHasChildrenHonoursIgnore verifies a folder holding only ignored entries is not expandable.
func TestLoadChildrenHasChildrenHonoursIgnore(testingHandle *testing.T) {
	newMemory := func() *filesystem.Memory {
		return filesystem.NewMemory().
			AddFile("/ws/.gitignore", "*.tmp\n").
			AddFile("/ws/scratch/a.tmp", "x").
			AddFile("/ws/local/.gitignore", "*\n").
			AddFile("/ws/local/b.txt", "x").
			AddFile("/ws/src/main.go", "x")
	}
	testCases := []struct {
		name          string
		respectIgnore bool
		expected      map[string]bool
	}{
		{name: "respecting ignore rules", respectIgnore: true, expected: map[string]bool{"ws/scratch": false, "ws/local": false, "ws/src": true}},
		{name: "flagging ignored entries", respectIgnore: false, expected: map[string]bool{"ws/scratch": true, "ws/local": true, "ws/src": true}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			loader := workspace.NewLoader(newMemory(), nil, nil, workspace.Options{RespectIgnore: testCase.respectIgnore})
			loader.LoadRoots(newWorkspaceRoots())
			children, _, loadError := loader.LoadChildren(context.Background(), "ws")
			if loadError != nil {
				testingHandle.Fatalf("unexpected error: %v", loadError)
			}
			for folderPath, expectedHasChildren := range testCase.expected {
				node, found := findNode(children, folderPath)
				if !found || node.HasChildren != expectedHasChildren {
					testingHandle.Errorf("%s: expected HasChildren=%t, found=%t node=%+v", folderPath, expectedHasChildren, found, node)
				}
			}
		})
	}
}

// TestLoadTreeIdempotent verifies that loading an unchanged tree twice yields the same result.
func TestLoadTreeIdempotent(testingHandle *testing.T) {
	memory := filesystem.NewMemory().
		AddFile("/ws/.gitignore", "dist/\n").
		AddFile("/ws/dist/x.js", "x").
		AddFile("/ws/src/a.ts", "a").
		AddFile("/ws/src/b.ts", "b").
		AddFile("/ws/README.md", "r")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{RespectIgnore: true})

	first, _ := loader.LoadTree(context.Background(), newWorkspaceRoots())
	loader.Reset()
	second, _ := loader.LoadTree(context.Background(), newWorkspaceRoots())
	if !reflect.DeepEqual(first.Nodes, second.Nodes) {
		testingHandle.Fatalf("node lists differ:\n%v\n%v", first.Nodes, second.Nodes)
	}
	if !reflect.DeepEqual(first.Files, second.Files) {
		testingHandle.Fatalf("file records differ")
	}
}

// TestLoadTreeSkipsUnavailableEntries verifies unlistable directories and broken links are omitted.
func TestLoadTreeSkipsUnavailableEntries(testingHandle *testing.T) {
	memory := filesystem.NewMemory().
		AddFile("/ws/ok/a.txt", "a").
		AddFile("/ws/locked/secret.txt", "s").
		AddFile("/target/linked.txt", "l").
		AddSymlink("/ws/link-file", "/target/linked.txt").
		AddSymlink("/ws/link-dir", "/target").
		AddSymlink("/ws/broken", "/missing").
		FailListing("/ws/locked")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{RespectIgnore: true})

	treeData, loadError := loader.LoadTree(context.Background(), newWorkspaceRoots())
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	expectedPaths := []string{"ws", "ws/link-dir", "ws/link-dir/linked.txt", "ws/ok", "ws/ok/a.txt", "ws/link-file"}
	if actual := collectPaths(treeData.Nodes); !reflect.DeepEqual(actual, expectedPaths) {
		testingHandle.Fatalf("expected %v, got %v", expectedPaths, actual)
	}
}

// TestLoadTreeUnavailableRoot verifies that an unlistable root produces an empty tree without error.
func TestLoadTreeUnavailableRoot(testingHandle *testing.T) {
	memory := filesystem.NewMemory()
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{})
	treeData, loadError := loader.LoadTree(context.Background(), []workspace.Root{{Label: "gone", Handle: "/gone"}})
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	if len(treeData.Nodes) != 0 || len(treeData.Files) != 0 {
		testingHandle.Fatalf("expected an empty tree, got %+v", treeData)
	}
}

// TestLoadChildrenLazy verifies one-level listing, HasChildren probing and resumption from stored context.
func TestLoadChildrenLazy(testingHandle *testing.T) {
	memory := filesystem.NewMemory().
		AddFile("/ws/.gitignore", "*.tmp\n").
		AddFile("/ws/src/main.go", "x").
		AddFile("/ws/src/scratch.tmp", "x").
		AddDirectory("/ws/empty").
		AddFile("/ws/onlygit/.git/HEAD", "x").
		AddFile("/ws/root.txt", "x")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{RespectIgnore: true})
	ctx := context.Background()

	roots := loader.LoadRoots(newWorkspaceRoots())
	if len(roots) != 1 || roots[0].Loaded || !roots[0].HasChildren || roots[0].Path != "ws" {
		testingHandle.Fatalf("unexpected root nodes %+v", roots)
	}

	children, files, loadError := loader.LoadChildren(ctx, "ws")
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	expected := []types.Node{
		{Label: "empty", Path: "ws/empty", Kind: types.NodeKindFolder},
		{Label: "onlygit", Path: "ws/onlygit", Kind: types.NodeKindFolder},
		{Label: "src", Path: "ws/src", Kind: types.NodeKindFolder, HasChildren: true},
		{Label: ".gitignore", Path: "ws/.gitignore", Kind: types.NodeKindFile},
		{Label: "root.txt", Path: "ws/root.txt", Kind: types.NodeKindFile},
	}
	if !reflect.DeepEqual(children, expected) {
		testingHandle.Fatalf("expected %+v, got %+v", expected, children)
	}
	if len(files) != 2 {
		testingHandle.Fatalf("expected two file records, got %d", len(files))
	}

	sourceChildren, sourceFiles, sourceError := loader.LoadChildren(ctx, "ws/src")
	if sourceError != nil {
		testingHandle.Fatalf("unexpected error: %v", sourceError)
	}
	if len(sourceChildren) != 1 || sourceChildren[0].Path != "ws/src/main.go" {
		testingHandle.Fatalf("expected the inherited *.tmp pattern to apply, got %+v", sourceChildren)
	}
	if len(sourceFiles) != 1 || sourceFiles[0].Handle != "/ws/src/main.go" {
		testingHandle.Fatalf("unexpected file records %+v", sourceFiles)
	}
}

// TestLoadChildrenUnknownFolder verifies the sentinel error for unreported folders.
func TestLoadChildrenUnknownFolder(testingHandle *testing.T) {
	loader := workspace.NewLoader(filesystem.NewMemory(), nil, nil, workspace.Options{})
	_, _, loadError := loader.LoadChildren(context.Background(), "nowhere")
	if !errors.Is(loadError, workspace.ErrUnknownFolder) {
		testingHandle.Fatalf("expected ErrUnknownFolder, got %v", loadError)
	}
}

// TestLoadChildrenVanishedFolder verifies that a folder deleted after being reported yields no children.
func TestLoadChildrenVanishedFolder(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/ws/gone/a.txt", "a")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{})
	loader.LoadRoots(newWorkspaceRoots())
	if _, _, loadError := loader.LoadChildren(context.Background(), "ws"); loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	memory.Remove("/ws/gone")
	children, files, loadError := loader.LoadChildren(context.Background(), "ws/gone")
	if loadError != nil || len(children) != 0 || len(files) != 0 {
		testingHandle.Fatalf("expected an empty result, got %v %v %v", children, files, loadError)
	}
}

// TestLoadTreeBoundsConcurrency verifies that filesystem calls in flight never exceed the limit.
func TestLoadTreeBoundsConcurrency(testingHandle *testing.T) {
	memory := filesystem.NewMemory().SetDelay(time.Millisecond)
	for directoryIndex := 0; directoryIndex < 40; directoryIndex++ {
		for fileIndex := 0; fileIndex < 3; fileIndex++ {
			memory.AddFile("/ws/"+string(rune('a'+directoryIndex%26))+string(rune('0'+directoryIndex/26))+"/f"+string(rune('0'+fileIndex)), "x")
		}
	}
	const limit = 4
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{Concurrency: limit})
	treeData, loadError := loader.LoadTree(context.Background(), newWorkspaceRoots())
	if loadError != nil {
		testingHandle.Fatalf("unexpected error: %v", loadError)
	}
	if len(treeData.Files) != 120 {
		testingHandle.Fatalf("expected 120 files, got %d", len(treeData.Files))
	}
	if observed := memory.MaximumInFlight(); observed > limit {
		testingHandle.Fatalf("expected at most %d calls in flight, observed %d", limit, observed)
	}
}

// TestLoadTreeCancelled verifies that cancellation is the only reported error.
func TestLoadTreeCancelled(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/ws/a.txt", "a")
	loader := workspace.NewLoader(memory, nil, nil, workspace.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, loadError := loader.LoadTree(ctx, newWorkspaceRoots()); !errors.Is(loadError, context.Canceled) {
		testingHandle.Fatalf("expected context.Canceled, got %v", loadError)
	}
}

// TestRootsFromPaths verifies labels and duplicate disambiguation.
func TestRootsFromPaths(testingHandle *testing.T) {
	roots := workspace.RootsFromPaths([]string{"/a/app", "/b/app", "/c/lib", "/a/app"})
	expected := []workspace.Root{
		{Label: "app", Handle: "/a/app"},
		{Label: "app (2)", Handle: "/b/app"},
		{Label: "lib", Handle: "/c/lib"},
	}
	if !reflect.DeepEqual(roots, expected) {
		testingHandle.Fatalf("expected %v, got %v", expected, roots)
	}
}
