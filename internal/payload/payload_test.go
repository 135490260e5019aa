package payload_test

import (
	"context"
	"strings"
	"testing"

	"github.com/temirov/contextkit/internal/payload"
	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

func recordFor(filePath string) types.FileRecord {
	return types.FileRecord{Path: filePath, Handle: filesystem.Handle("/" + filePath)}
}

func fullConfiguration(promptText string) types.CopyConfiguration {
	return types.CopyConfiguration{PromptText: promptText, IncludePrompt: true, IncludeSavedPrompts: true, IncludeFiles: true}
}

// TestAssembleRoundTrip verifies block order, tree content and escaping for a two-file selection.
func TestAssembleRoundTrip(testingHandle *testing.T) {
	memory := filesystem.NewMemory().
		AddFile("/src/b.ts", "export const b = 2").
		AddFile("/src/a.ts", "export const a = 1")
	entries := []types.FileRecord{recordFor("src/b.ts"), recordFor("src/a.ts")}

	result, assembleError := payload.Assemble(context.Background(), memory, entries, nil, fullConfiguration("  explain <this> & that  "), payload.Options{})
	if assembleError != nil {
		testingHandle.Fatalf("unexpected error: %v", assembleError)
	}
	expected := strings.Join([]string{
		"<context>",
		"<fileTree>\n.\n└── src/\n    ├── a.ts\n    └── b.ts\n</fileTree>",
		"<file path=\"src/b.ts\">\n```typescript\nexport const b = 2\n```\n</file>",
		"<file path=\"src/a.ts\">\n```typescript\nexport const a = 1\n```\n</file>",
		"<userInstructions>\nexplain &lt;this&gt; &amp; that\n</userInstructions>",
		"</context>",
	}, "\n\n")
	if result.Text != expected {
		testingHandle.Fatalf("unexpected payload:\n%s\nexpected:\n%s", result.Text, expected)
	}
	if strings.Count(result.Text, "<fileTree>") != 1 || strings.Contains(result.Text, "<metaInstructions>") {
		testingHandle.Fatalf("unexpected block counts")
	}
	if len(result.Skipped) != 0 {
		testingHandle.Fatalf("expected nothing skipped, got %v", result.Skipped)
	}
	if result.Sizes["src/a.ts"] != int64(len("export const a = 1")) {
		testingHandle.Fatalf("expected stat sizes to be reported, got %v", result.Sizes)
	}
	message, level := result.StatusMessage()
	if message != "Context copied to clipboard" || level != types.StatusLevelInfo {
		testingHandle.Fatalf("unexpected status %q %q", message, level)
	}
}

// TestAssembleEmptyGuard verifies the empty-content reasons and their priority.
func TestAssembleEmptyGuard(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/src/a.ts", "a").AddFile("/bin.dat", "\x00\x01")
	testCases := []struct {
		name           string
		entries        []types.FileRecord
		configuration  types.CopyConfiguration
		expectedReason string
	}{
		{
			name:           "everything disabled",
			entries:        []types.FileRecord{recordFor("src/a.ts")},
			configuration:  types.CopyConfiguration{},
			expectedReason: payload.EmptyReasonNoEligibleFiles,
		},
		{
			name:           "prompt text without include flag",
			entries:        nil,
			configuration:  types.CopyConfiguration{PromptText: "explain", IncludeFiles: true},
			expectedReason: payload.EmptyReasonEnableInstructions,
		},
		{
			name:           "no selection",
			entries:        nil,
			configuration:  fullConfiguration("   "),
			expectedReason: payload.EmptyReasonNoFilesSelected,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			result, assembleError := payload.Assemble(context.Background(), memory, testCase.entries, nil, testCase.configuration, payload.Options{})
			if assembleError != nil {
				testingHandle.Fatalf("unexpected error: %v", assembleError)
			}
			if !result.IsEmpty() || result.EmptyReason != testCase.expectedReason {
				testingHandle.Fatalf("expected %q, got text=%q reason=%q", testCase.expectedReason, result.Text, result.EmptyReason)
			}
			if _, level := result.StatusMessage(); level != types.StatusLevelWarning {
				testingHandle.Fatalf("expected a warning level")
			}
		})
	}
}

// TestAssembleBinaryOnlySelection verifies that a selection of binary files still reports a tree.
func TestAssembleBinaryOnlySelection(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/logo.png", "\x89PNG\x00data")
	result, _ := payload.Assemble(context.Background(), memory, []types.FileRecord{recordFor("logo.png")}, nil, fullConfiguration(""), payload.Options{})
	if result.IsEmpty() || strings.Contains(result.Text, "<file ") {
		testingHandle.Fatalf("expected a tree-only payload, got %q", result.Text)
	}
	message, _ := result.StatusMessage()
	if message != "Context copied to clipboard. Skipped: logo.png (binary)" {
		testingHandle.Fatalf("unexpected status %q", message)
	}
}

// TestAssembleSkipReasons verifies the size ceiling, the binary sniff window and unreadable files.
func TestAssembleSkipReasons(testingHandle *testing.T) {
	exactLimit := strings.Repeat("a", utils.MaxFileSizeBytes)
	overLimit := exactLimit + "a"
	lateNull := strings.Repeat("a", utils.BinarySniffLength) + "\x00"
	memory := filesystem.NewMemory().
		AddFile("/exact.txt", exactLimit).
		AddFile("/over.txt", overLimit).
		AddFile("/image.txt", "ab\x00cd").
		AddFile("/late-null.txt", lateNull).
		AddFile("/locked.txt", "secret").
		FailReading("/locked.txt")
	entries := []types.FileRecord{
		recordFor("exact.txt"),
		recordFor("over.txt"),
		recordFor("image.txt"),
		recordFor("late-null.txt"),
		recordFor("locked.txt"),
		recordFor("missing.txt"),
	}
	result, assembleError := payload.Assemble(context.Background(), memory, entries, nil, fullConfiguration(""), payload.Options{Concurrency: 2})
	if assembleError != nil {
		testingHandle.Fatalf("unexpected error: %v", assembleError)
	}
	expectedSkipped := []payload.SkippedFile{
		{Path: "over.txt", Reason: payload.SkipReasonTooLarge},
		{Path: "image.txt", Reason: payload.SkipReasonBinary},
		{Path: "locked.txt", Reason: payload.SkipReasonUnreadable},
		{Path: "missing.txt", Reason: payload.SkipReasonUnreadable},
	}
	if len(result.Skipped) != len(expectedSkipped) {
		testingHandle.Fatalf("expected %v, got %v", expectedSkipped, result.Skipped)
	}
	for index, skipped := range expectedSkipped {
		if result.Skipped[index] != skipped {
			testingHandle.Fatalf("expected %v at %d, got %v", skipped, index, result.Skipped[index])
		}
	}
	if !strings.Contains(result.Text, `<file path="exact.txt">`) || !strings.Contains(result.Text, `<file path="late-null.txt">`) {
		testingHandle.Fatalf("expected the exact-limit and late-null files to be included")
	}
}

// TestAssembleCachedSizeSkipsRead verifies a cached oversize record is rejected before reading.
func TestAssembleCachedSizeSkipsRead(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/small.txt", "tiny")
	record := recordFor("small.txt")
	record.SetSize(utils.MaxFileSizeBytes + 1)
	result, _ := payload.Assemble(context.Background(), memory, []types.FileRecord{record}, nil, fullConfiguration(""), payload.Options{})
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != payload.SkipReasonTooLarge {
		testingHandle.Fatalf("expected the cached size to be trusted, got %v", result.Skipped)
	}
	if len(result.Sizes) != 0 {
		testingHandle.Fatalf("expected no new sizes, got %v", result.Sizes)
	}
}

// TestAssembleEscaping verifies fence escaping, path escaping and meta prompt rendering.
func TestAssembleEscaping(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/docs/R&D.md", "before\n```go\ncode\n```\nafter")
	metaPrompts := []types.MetaPrompt{
		{ID: "1", Name: `Review "strict"`, Body: "  Be <terse>.  "},
		{ID: "2", Name: "Empty", Body: "   "},
	}
	configuration := types.CopyConfiguration{IncludeFiles: true, IncludeSavedPrompts: true}
	result, _ := payload.Assemble(context.Background(), memory, []types.FileRecord{recordFor("docs/R&D.md")}, metaPrompts, configuration, payload.Options{})

	if !strings.Contains(result.Text, `<file path="docs/R&amp;D.md">`+"\n```markdown\n") {
		testingHandle.Fatalf("expected an escaped path attribute and markdown fence, got %q", result.Text)
	}
	if strings.Count(result.Text, "```") != 2 {
		testingHandle.Fatalf("expected inner fences to be escaped, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "├── R&amp;D.md") && !strings.Contains(result.Text, "└── R&amp;D.md") {
		testingHandle.Fatalf("expected the tree to be escaped, got %q", result.Text)
	}
	expectedMeta := "<metaInstructions>\n<metaInstruction name=\"Review &quot;strict&quot;\">\nBe &lt;terse&gt;.\n</metaInstruction>\n<metaInstruction name=\"Empty\" />\n</metaInstructions>"
	if !strings.Contains(result.Text, expectedMeta) {
		testingHandle.Fatalf("expected meta block %q in %q", expectedMeta, result.Text)
	}
	if strings.Contains(result.Text, "<userInstructions>") {
		testingHandle.Fatalf("expected no user instructions block")
	}
}

// TestAssembleCancelled verifies cancellation is reported.
func TestAssembleCancelled(testingHandle *testing.T) {
	memory := filesystem.NewMemory().AddFile("/a.txt", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, assembleError := payload.Assemble(ctx, memory, []types.FileRecord{recordFor("a.txt")}, nil, fullConfiguration(""), payload.Options{}); assembleError == nil {
		testingHandle.Fatalf("expected a cancellation error")
	}
}

// TestBuildFileTree verifies connectors, folder ordering and deduplication.
func TestBuildFileTree(testingHandle *testing.T) {
	actual := payload.BuildFileTree([]string{"ws/z.txt", "ws/lib/b.go", "ws/lib/a.go", "ws/Alpha/x.md", "ws/z.txt", "top.txt"})
	expected := strings.Join([]string{
		".",
		"├── ws/",
		"│   ├── Alpha/",
		"│   │   └── x.md",
		"│   ├── lib/",
		"│   │   ├── a.go",
		"│   │   └── b.go",
		"│   └── z.txt",
		"└── top.txt",
	}, "\n")
	if actual != expected {
		testingHandle.Fatalf("unexpected tree:\n%s\nexpected:\n%s", actual, expected)
	}
	if payload.BuildFileTree(nil) != "" {
		testingHandle.Fatalf("expected an empty tree for no paths")
	}
}
