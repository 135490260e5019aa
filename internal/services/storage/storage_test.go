package storage_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/temirov/contextkit/internal/services/storage"
)

type samplePrompt struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestFileStoreRoundTrip verifies values persist across store instances and keys coexist.
func TestFileStoreRoundTrip(testingHandle *testing.T) {
	statePath := filepath.Join(testingHandle.TempDir(), "nested", "state.json")
	store := storage.NewFileStore(statePath)

	var missing []samplePrompt
	found, getError := store.Get("absent", &missing)
	if getError != nil || found {
		testingHandle.Fatalf("expected a missing key, got found=%t err=%v", found, getError)
	}

	if setError := store.Set("prompts", []samplePrompt{{ID: "1", Name: "one"}}); setError != nil {
		testingHandle.Fatalf("unexpected error: %v", setError)
	}
	if setError := store.Set("other", "value"); setError != nil {
		testingHandle.Fatalf("unexpected error: %v", setError)
	}

	reopened := storage.NewFileStore(statePath)
	var prompts []samplePrompt
	found, getError = reopened.Get("prompts", &prompts)
	if getError != nil || !found || len(prompts) != 1 || prompts[0].Name != "one" {
		testingHandle.Fatalf("unexpected read: found=%t err=%v prompts=%v", found, getError, prompts)
	}
	var other string
	if found, _ = reopened.Get("other", &other); !found || other != "value" {
		testingHandle.Fatalf("expected the second key to survive, got %q", other)
	}

	entries, _ := os.ReadDir(filepath.Dir(statePath))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			testingHandle.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}

// TestFileStoreCorruptDocument verifies decode failures are reported.
func TestFileStoreCorruptDocument(testingHandle *testing.T) {
	statePath := filepath.Join(testingHandle.TempDir(), "state.json")
	if writeError := os.WriteFile(statePath, []byte("{not json"), 0o600); writeError != nil {
		testingHandle.Fatalf("write fixture: %v", writeError)
	}
	var target any
	if _, getError := storage.NewFileStore(statePath).Get("key", &target); getError == nil {
		testingHandle.Fatalf("expected a decode error")
	}
}

// TestFileStoreConcurrentWriters verifies that concurrent writers do not lose keys.
func TestFileStoreConcurrentWriters(testingHandle *testing.T) {
	statePath := filepath.Join(testingHandle.TempDir(), "state.json")
	var waitGroup sync.WaitGroup
	keys := []string{"a", "b", "c", "d", "e", "f"}
	for _, key := range keys {
		waitGroup.Add(1)
		go func(key string) {
			defer waitGroup.Done()
			if setError := storage.NewFileStore(statePath).Set(key, key); setError != nil {
				testingHandle.Errorf("set %s: %v", key, setError)
			}
		}(key)
	}
	waitGroup.Wait()
	store := storage.NewFileStore(statePath)
	for _, key := range keys {
		var value string
		if found, _ := store.Get(key, &value); !found || value != key {
			testingHandle.Fatalf("expected key %s to be stored", key)
		}
	}
}

// TestMemoryStore verifies the in-process store.
func TestMemoryStore(testingHandle *testing.T) {
	store := storage.NewMemoryStore()
	if setError := store.Set("k", []int{1, 2}); setError != nil {
		testingHandle.Fatalf("unexpected error: %v", setError)
	}
	var values []int
	if found, getError := store.Get("k", &values); !found || getError != nil || len(values) != 2 {
		testingHandle.Fatalf("unexpected read %v %v %v", found, getError, values)
	}
	store.SetRaw("bad", "{")
	if _, getError := store.Get("bad", &values); getError == nil {
		testingHandle.Fatalf("expected a decode error")
	}
}

// TestStoreModify verifies the read-modify-write contract for both stores.
func TestStoreModify(testingHandle *testing.T) {
	testCases := []struct {
		name  string
		store storage.Store
	}{
		{name: "file", store: storage.NewFileStore(filepath.Join(testingHandle.TempDir(), "state.json"))},
		{name: "memory", store: storage.NewMemoryStore()},
	}
	errRejected := errors.New("rejected")
	for _, testCase := range testCases {
		testCase := testCase
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			increment := func(current json.RawMessage) (any, error) {
				counter := 0
				if current != nil {
					if decodeError := json.Unmarshal(current, &counter); decodeError != nil {
						return nil, decodeError
					}
				}
				return counter + 1, nil
			}
			for attempt := 0; attempt < 3; attempt++ {
				if modifyError := testCase.store.Modify("counter", increment); modifyError != nil {
					testingHandle.Fatalf("unexpected error: %v", modifyError)
				}
			}
			rejectError := testCase.store.Modify("counter", func(json.RawMessage) (any, error) {
				return nil, errRejected
			})
			if !errors.Is(rejectError, errRejected) {
				testingHandle.Fatalf("expected the change error, got %v", rejectError)
			}
			var counter int
			if found, getError := testCase.store.Get("counter", &counter); !found || getError != nil || counter != 3 {
				testingHandle.Fatalf("expected 3, got %d (found=%t err=%v)", counter, found, getError)
			}
		})
	}
}
