package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/temirov/contextkit/internal/output"
	"github.com/temirov/contextkit/internal/types"
)

func sampleTree() []types.Node {
	return []types.Node{
		{
			Label:  "ws",
			Path:   "ws",
			Kind:   types.NodeKindFolder,
			Loaded: true,
			Children: []types.Node{
				{
					Label:  "src",
					Path:   "ws/src",
					Kind:   types.NodeKindFolder,
					Loaded: true,
					Children: []types.Node{
						{Label: "lazy", Path: "ws/src/lazy", Kind: types.NodeKindFolder, HasChildren: true},
						{Label: "main.go", Path: "ws/src/main.go", Kind: types.NodeKindFile},
					},
				},
				{Label: "debug.log", Path: "ws/debug.log", Kind: types.NodeKindFile, Ignored: true},
			},
		},
		{Label: "other", Path: "other", Kind: types.NodeKindFolder, Loaded: true},
	}
}

// TestWriteTreesRaw verifies connectors, folder markers and root separation.
func TestWriteTreesRaw(testingHandle *testing.T) {
	var buffer bytes.Buffer
	if err := output.WriteTreesRaw(&buffer, sampleTree()); err != nil {
		testingHandle.Fatalf("unexpected error: %v", err)
	}
	expected := strings.Join([]string{
		"ws/",
		"├── src/",
		"│   ├── lazy/ …",
		"│   └── main.go",
		"└── debug.log (ignored)",
		"",
		"other/",
		"",
	}, "\n")
	if buffer.String() != expected {
		testingHandle.Fatalf("unexpected tree:\n%s\nexpected:\n%s", buffer.String(), expected)
	}
}

// TestWriteTreesJSON verifies the JSON shape of nodes.
func TestWriteTreesJSON(testingHandle *testing.T) {
	var buffer bytes.Buffer
	if err := output.WriteTreesJSON(&buffer, sampleTree()); err != nil {
		testingHandle.Fatalf("unexpected error: %v", err)
	}
	var decoded []types.Node
	if err := json.Unmarshal(buffer.Bytes(), &decoded); err != nil {
		testingHandle.Fatalf("invalid json: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Children[0].Children[1].Path != "ws/src/main.go" {
		testingHandle.Fatalf("unexpected decoded tree %+v", decoded)
	}

	buffer.Reset()
	if err := output.WriteTreesJSON(&buffer, nil); err != nil {
		testingHandle.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		testingHandle.Fatalf("expected an empty array, got %q", buffer.String())
	}
}

// TestFormatSummaryLine covers estimated, exact and skipped variants.
func TestFormatSummaryLine(testingHandle *testing.T) {
	testCases := []struct {
		name     string
		size     string
		summary  output.Summary
		expected string
	}{
		{name: "estimate", size: "1.2 KB", summary: output.Summary{Files: 3, Bytes: 1200, Tokens: 300}, expected: "Summary: 3 files, 1.2 KB, ~300 tokens"},
		{name: "single file", size: "4 B", summary: output.Summary{Files: 1, Bytes: 4, Tokens: 1}, expected: "Summary: 1 file, 4 B, ~1 tokens"},
		{name: "exact", size: "4 B", summary: output.Summary{Files: 2, Tokens: 7, Model: "gpt-4o", Skipped: 1}, expected: "Summary: 2 files, 4 B, 7 tokens (model: gpt-4o), 1 skipped"},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			if actual := output.FormatSummaryLine(testCase.size, testCase.summary); actual != testCase.expected {
				testingHandle.Fatalf("expected %q, got %q", testCase.expected, actual)
			}
		})
	}
}

// TestStatusPrinter verifies plain and coloured rendering.
func TestStatusPrinter(testingHandle *testing.T) {
	var plain bytes.Buffer
	output.NewStatusPrinter(&plain, false).Print(types.StatusLevelWarning, "careful")
	if plain.String() != "careful\n" {
		testingHandle.Fatalf("unexpected plain output %q", plain.String())
	}

	var coloured bytes.Buffer
	printer := output.NewStatusPrinter(&coloured, true)
	printer.Print(types.StatusLevelInfo, "done")
	printer.Print(types.StatusLevelWarning, "")
	if !strings.Contains(coloured.String(), "\x1b[32m") || !strings.Contains(coloured.String(), "done") {
		testingHandle.Fatalf("expected green output, got %q", coloured.String())
	}
	if strings.Count(coloured.String(), "\n") != 1 {
		testingHandle.Fatalf("expected empty messages to be dropped, got %q", coloured.String())
	}

	if output.IsTerminal(&plain) {
		testingHandle.Fatalf("a buffer is not a terminal")
	}
}
