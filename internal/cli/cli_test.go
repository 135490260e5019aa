package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/services/clipboard"
	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/tui"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

const (
	mainFileName    = "main.go"
	mainFileContent = "package main\n"
	docsDirectory   = "docs"
	readmeFileName  = "readme.md"
	buildDirectory  = "build"
)

type commandHarness struct {
	workspaceDirectory string
	label              string
	recorder           *clipboard.Recorder
	runInterface       func(ctx context.Context, options tui.Options) error
}

type commandResult struct {
	stdout string
	stderr string
	err    error
}

func newCommandHarness(testingHandle *testing.T) *commandHarness {
	testingHandle.Helper()
	workspaceDirectory := testingHandle.TempDir()
	homeDirectory := testingHandle.TempDir()
	testingHandle.Setenv("HOME", homeDirectory)
	testingHandle.Setenv("USERPROFILE", homeDirectory)

	writeFile(testingHandle, filepath.Join(workspaceDirectory, mainFileName), mainFileContent)
	writeFile(testingHandle, filepath.Join(workspaceDirectory, docsDirectory, readmeFileName), "# Docs\n")
	writeFile(testingHandle, filepath.Join(workspaceDirectory, buildDirectory, "out.txt"), "artifact\n")
	writeFile(testingHandle, filepath.Join(workspaceDirectory, ".gitignore"), buildDirectory+"/\n")

	return &commandHarness{
		workspaceDirectory: workspaceDirectory,
		label:              filepath.Base(workspaceDirectory),
		recorder:           clipboard.NewRecorder(),
	}
}

func writeFile(testingHandle *testing.T, path string, content string) {
	testingHandle.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		testingHandle.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		testingHandle.Fatalf("write %s: %v", path, err)
	}
}

// lockedBuffer is a bytes.Buffer safe for a command writing while a test reads.
type lockedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (locked *lockedBuffer) Write(data []byte) (int, error) {
	locked.mutex.Lock()
	defer locked.mutex.Unlock()
	return locked.buffer.Write(data)
}

func (locked *lockedBuffer) String() string {
	locked.mutex.Lock()
	defer locked.mutex.Unlock()
	return locked.buffer.String()
}

func (harness *commandHarness) run(testingHandle *testing.T, arguments ...string) commandResult {
	testingHandle.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var stdout, stderr lockedBuffer
	err := harness.execute(ctx, &stdout, &stderr, arguments...)
	return commandResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (harness *commandHarness) execute(ctx context.Context, stdout *lockedBuffer, stderr *lockedBuffer, arguments ...string) error {
	runInterface := harness.runInterface
	if runInterface == nil {
		runInterface = func(context.Context, tui.Options) error { return nil }
	}
	rootCommand := createRootCommand(dependencies{
		fileSystem:       filesystem.NewOS(),
		clipboard:        harness.recorder,
		stdout:           stdout,
		stderr:           stderr,
		workingDirectory: harness.workspaceDirectory,
		runInterface:     runInterface,
	})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, append([]string{"--log-level", "error"}, arguments...)))
	return rootCommand.ExecuteContext(ctx)
}

// TestTreeCommand verifies both output formats and the ignore toggle.
func TestTreeCommand(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)

	raw := harness.run(testingHandle, "tree")
	if raw.err != nil {
		testingHandle.Fatalf("tree failed: %v", raw.err)
	}
	for _, expected := range []string{harness.label + "/", "├── docs/", "│   └── readme.md", "main.go", ".gitignore"} {
		if !strings.Contains(raw.stdout, expected) {
			testingHandle.Fatalf("expected %q in:\n%s", expected, raw.stdout)
		}
	}
	if strings.Contains(raw.stdout, buildDirectory) {
		testingHandle.Fatalf("expected ignored folders to be hidden:\n%s", raw.stdout)
	}

	unfiltered := harness.run(testingHandle, "tree", "--no-gitignore", buildDirectory)
	if unfiltered.err != nil {
		testingHandle.Fatalf("tree --no-gitignore failed: %v", unfiltered.err)
	}
	if !strings.Contains(unfiltered.stdout, harness.label+"/build/ (ignored)") || !strings.Contains(unfiltered.stdout, "out.txt") {
		testingHandle.Fatalf("expected ignored entries to be marked:\n%s", unfiltered.stdout)
	}

	jsonResult := harness.run(testingHandle, "tree", "--format", "json", docsDirectory)
	if jsonResult.err != nil {
		testingHandle.Fatalf("tree json failed: %v", jsonResult.err)
	}
	var nodes []types.Node
	if err := json.Unmarshal([]byte(jsonResult.stdout), &nodes); err != nil {
		testingHandle.Fatalf("invalid json %q: %v", jsonResult.stdout, err)
	}
	if len(nodes) != 1 || nodes[0].Path != harness.label+"/docs" || len(nodes[0].Children) != 1 {
		testingHandle.Fatalf("unexpected nodes %+v", nodes)
	}

	invalid := harness.run(testingHandle, "tree", "--format", "yaml")
	if invalid.err == nil || !strings.Contains(invalid.err.Error(), "Invalid format value") {
		testingHandle.Fatalf("expected an invalid format error, got %v", invalid.err)
	}
}

// TestCopyCommand verifies clipboard and standard output delivery.
func TestCopyCommand(testingHandle *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		expectClipboard bool
		expectInPayload []string
		expectMissing   []string
	}{
		{
			name:            "clipboard",
			arguments:       []string{"copy", mainFileName, "--prompt", "explain <it>"},
			expectClipboard: true,
			expectInPayload: []string{"<context>", mainFileContent, "<userInstructions>\nexplain &lt;it&gt;\n</userInstructions>"},
		},
		{
			name:            "standard output",
			arguments:       []string{"copy", "--clipboard=false", docsDirectory},
			expectInPayload: []string{"readme.md", "```markdown\n# Docs"},
			expectMissing:   []string{mainFileContent},
		},
		{
			name:            "whole workspace without instructions",
			arguments:       []string{"copy", "--include-prompt=false", "--prompt", "ignored words"},
			expectClipboard: true,
			expectInPayload: []string{"main.go", "readme.md"},
			expectMissing:   []string{"ignored words", "artifact"},
		},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			harness := newCommandHarness(testingHandle)
			result := harness.run(testingHandle, testCase.arguments...)
			if result.err != nil {
				testingHandle.Fatalf("copy failed: %v (stderr %q)", result.err, result.stderr)
			}
			payloadText := result.stdout
			copied, hasCopy := harness.recorder.Last()
			if testCase.expectClipboard {
				if !hasCopy || result.stdout != "" {
					testingHandle.Fatalf("expected a clipboard copy only, stdout %q", result.stdout)
				}
				payloadText = copied
				if !strings.Contains(result.stderr, "Context copied to clipboard") {
					testingHandle.Fatalf("expected a copied status, got %q", result.stderr)
				}
			} else if hasCopy {
				testingHandle.Fatalf("expected the clipboard to be untouched")
			}
			for _, expected := range testCase.expectInPayload {
				if !strings.Contains(payloadText, expected) {
					testingHandle.Fatalf("expected %q in payload:\n%s", expected, payloadText)
				}
			}
			for _, unexpected := range testCase.expectMissing {
				if strings.Contains(payloadText, unexpected) {
					testingHandle.Fatalf("did not expect %q in payload:\n%s", unexpected, payloadText)
				}
			}
		})
	}
}

// TestCopyCommandFailures verifies empty payloads, unknown paths and clipboard errors.
func TestCopyCommandFailures(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)

	empty := harness.run(testingHandle, "copy", "--include-files=false", mainFileName)
	if !errors.Is(empty.err, errNothingCopied) || !strings.Contains(empty.err.Error(), "No eligible files to copy.") {
		testingHandle.Fatalf("expected a nothing copied error, got %v", empty.err)
	}

	missing := harness.run(testingHandle, "copy", "missing.txt")
	if missing.err == nil || !strings.Contains(missing.err.Error(), "not part of the workspace") {
		testingHandle.Fatalf("expected an unknown path error, got %v", missing.err)
	}

	ignored := harness.run(testingHandle, "copy", filepath.Join(buildDirectory, "out.txt"))
	if ignored.err == nil {
		testingHandle.Fatalf("expected ignored files to be rejected")
	}

	outside := harness.run(testingHandle, "copy", filepath.Dir(harness.workspaceDirectory))
	if outside.err == nil || !strings.Contains(outside.err.Error(), "outside every workspace root") {
		testingHandle.Fatalf("expected an outside path error, got %v", outside.err)
	}

	harness.recorder.FailWith(clipboard.ErrUnsupported)
	unsupported := harness.run(testingHandle, "copy", mainFileName)
	if unsupported.err != nil {
		testingHandle.Fatalf("expected the payload to be printed, got %v", unsupported.err)
	}
	if !strings.Contains(unsupported.stdout, mainFileContent) || !strings.Contains(unsupported.stderr, clipboard.ErrUnsupported.Error()) {
		testingHandle.Fatalf("expected stdout fallback and a warning, got %q / %q", unsupported.stdout, unsupported.stderr)
	}
}

// TestSummaryCommand verifies the estimated summary line.
func TestSummaryCommand(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)
	result := harness.run(testingHandle, "summary", mainFileName)
	if result.err != nil {
		testingHandle.Fatalf("summary failed: %v", result.err)
	}
	if strings.TrimSpace(result.stdout) != "Summary: 1 file, 13 B, ~4 tokens" {
		testingHandle.Fatalf("unexpected summary %q", result.stdout)
	}

	workspaceSummary := harness.run(testingHandle, "s")
	if workspaceSummary.err != nil || !strings.HasPrefix(workspaceSummary.stdout, "Summary: 3 files") {
		testingHandle.Fatalf("unexpected workspace summary %q (%v)", workspaceSummary.stdout, workspaceSummary.err)
	}
}

// TestPromptsCommand verifies the saved prompt lifecycle and attaching prompts to a copy.
func TestPromptsCommand(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)

	empty := harness.run(testingHandle, "prompts", "list")
	if empty.err != nil || strings.TrimSpace(empty.stdout) != noPromptsMessage {
		testingHandle.Fatalf("expected no prompts, got %q (%v)", empty.stdout, empty.err)
	}

	added := harness.run(testingHandle, "prompts", "add", "--name", "Review", "--body", "Be strict")
	if added.err != nil {
		testingHandle.Fatalf("add failed: %v", added.err)
	}
	listed := harness.run(testingHandle, "prompts", "list")
	fields := strings.Split(strings.TrimSpace(listed.stdout), "\t")
	if len(fields) != 2 || fields[1] != "Review" {
		testingHandle.Fatalf("unexpected listing %q", listed.stdout)
	}
	promptID := fields[0]

	if updated := harness.run(testingHandle, "prompts", "update", promptID, "--body", "Be kind"); updated.err != nil {
		testingHandle.Fatalf("update failed: %v", updated.err)
	}

	copied := harness.run(testingHandle, "copy", "--clipboard=false", "--meta", "review", mainFileName)
	if copied.err != nil {
		testingHandle.Fatalf("copy failed: %v", copied.err)
	}
	if !strings.Contains(copied.stdout, "<metaInstruction name=\"Review\">\nBe kind\n</metaInstruction>") {
		testingHandle.Fatalf("expected the saved prompt in the payload:\n%s", copied.stdout)
	}

	unknown := harness.run(testingHandle, "copy", "--meta", "nope", mainFileName)
	if unknown.err == nil || !strings.Contains(unknown.err.Error(), "unknown saved prompt") {
		testingHandle.Fatalf("expected an unknown prompt error, got %v", unknown.err)
	}

	if deleted := harness.run(testingHandle, "prompts", "delete", promptID); deleted.err != nil {
		testingHandle.Fatalf("delete failed: %v", deleted.err)
	}
	final := harness.run(testingHandle, "prompts", "list")
	if strings.TrimSpace(final.stdout) != noPromptsMessage {
		testingHandle.Fatalf("expected the prompt to be deleted, got %q", final.stdout)
	}
}

// TestInitAndVersion verifies configuration initialization and the version flag.
func TestInitAndVersion(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)

	initialized := harness.run(testingHandle, "init")
	if initialized.err != nil {
		testingHandle.Fatalf("init failed: %v", initialized.err)
	}
	if _, err := os.Stat(filepath.Join(harness.workspaceDirectory, utils.ConfigFileName)); err != nil {
		testingHandle.Fatalf("expected a configuration file: %v", err)
	}
	if repeated := harness.run(testingHandle, "init"); repeated.err == nil {
		testingHandle.Fatalf("expected init to refuse overwriting")
	}
	if forced := harness.run(testingHandle, "init", "--force"); forced.err != nil {
		testingHandle.Fatalf("init --force failed: %v", forced.err)
	}

	version := harness.run(testingHandle, "--version")
	if version.err != nil || !strings.HasPrefix(version.stdout, "contextkit version: ") {
		testingHandle.Fatalf("unexpected version output %q (%v)", version.stdout, version.err)
	}
}

// TestUICommandRunsController verifies the panel receives a live controller session.
func TestUICommandRunsController(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)
	var observed *types.UIState
	harness.runInterface = func(ctx context.Context, options tui.Options) error {
		if err := options.Session.Submit(ctx, controller.Ready{}); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event := <-options.Session.Events():
				if event.Kind == controller.EventKindSnapshot && event.State != nil && len(event.State.Nodes) > 0 {
					observed = event.State
				}
				if event.Kind == controller.EventKindIdle && observed != nil {
					return nil
				}
			}
		}
	}
	result := harness.run(testingHandle, "ui", "--lazy=false")
	if result.err != nil {
		testingHandle.Fatalf("ui failed: %v", result.err)
	}
	if observed == nil || observed.Nodes[0].Path != harness.label {
		testingHandle.Fatalf("expected a snapshot of the workspace, got %+v", observed)
	}
}

// TestServeCommand verifies the host endpoint starts, answers and stops with its context.
func TestServeCommand(testingHandle *testing.T) {
	harness := newCommandHarness(testingHandle)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var stdout, stderr lockedBuffer
	finished := make(chan error, 1)
	go func() {
		finished <- harness.execute(ctx, &stdout, &stderr, "serve", "--watch=false")
	}()

	const listeningPrefix = "Listening on "
	var baseURL string
	for baseURL == "" {
		select {
		case err := <-finished:
			testingHandle.Fatalf("serve stopped early: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
		for _, line := range strings.Split(stderr.String(), "\n") {
			if index := strings.Index(line, listeningPrefix); index >= 0 {
				baseURL = strings.TrimSpace(line[index+len(listeningPrefix):])
			}
		}
	}

	response, err := http.Post(baseURL+"/intents", "application/json", strings.NewReader(`{"type":"ready"}`))
	if err != nil {
		testingHandle.Fatalf("post intent: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusAccepted {
		testingHandle.Fatalf("expected the intent to be accepted, got %d", response.StatusCode)
	}

	cancel()
	select {
	case err := <-finished:
		if err != nil {
			testingHandle.Fatalf("serve failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		testingHandle.Fatalf("serve did not stop")
	}
}
