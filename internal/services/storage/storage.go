// Package storage persists process-wide key-value state as one JSON document.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix        = ".lock"
	temporaryFilePattern  = ".tmp-*"
	directoryPermissions  = 0o755
	filePermissions       = 0o644
	jsonIndentPrefix      = ""
	jsonIndent            = "  "
	errorLockFormat       = "acquire lock on %s: %w"
	errorReadFormat       = "read %s: %w"
	errorDecodeFormat     = "decode %s: %w"
	errorDecodeKeyFormat  = "decode key %s: %w"
	errorEncodeKeyFormat  = "encode key %s: %w"
	errorEncodeFormat     = "encode %s: %w"
	errorCreateDirFormat  = "create directory %s: %w"
	errorCreateTempFormat = "create temp file in %s: %w"
	errorWriteTempFormat  = "write temp file %s: %w"
	errorRenameFormat     = "rename temp file to %s: %w"
)

// Store reads and writes JSON values by key.
type Store interface {
	// Get decodes the value stored under key into target and reports whether it existed.
	Get(key string, target any) (bool, error)
	// Set stores value under key.
	Set(key string, value any) error
	// Modify reads the raw value under key (nil when absent), passes it to change and stores
	// the result, all under one exclusive lock. An error from change is returned as is and
	// leaves the store untouched.
	Modify(key string, change func(current json.RawMessage) (any, error)) error
}

// FileStore keeps every key in one JSON file guarded by an adjacent lock file.
// Writes replace the file atomically.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

// NewFileStore returns a store backed by the file at path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (store *FileStore) Path() string {
	return store.path
}

// Get implements Store.
func (store *FileStore) Get(key string, target any) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	lock := flock.New(store.path + lockFileSuffix)
	if err := store.ensureDirectory(); err != nil {
		return false, err
	}
	if err := lock.RLock(); err != nil {
		return false, fmt.Errorf(errorLockFormat, store.path, err)
	}
	defer lock.Unlock()

	document, err := store.readDocument()
	if err != nil {
		return false, err
	}
	raw, found := document[key]
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf(errorDecodeKeyFormat, key, err)
	}
	return true, nil
}

// Set implements Store. Other keys in the document are preserved.
func (store *FileStore) Set(key string, value any) error {
	return store.Modify(key, func(json.RawMessage) (any, error) {
		return value, nil
	})
}

// Modify implements Store. The lock file serialises writers across processes.
func (store *FileStore) Modify(key string, change func(current json.RawMessage) (any, error)) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if err := store.ensureDirectory(); err != nil {
		return err
	}
	lock := flock.New(store.path + lockFileSuffix)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf(errorLockFormat, store.path, err)
	}
	defer lock.Unlock()

	document, err := store.readDocument()
	if err != nil {
		return err
	}
	value, err := change(document[key])
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf(errorEncodeKeyFormat, key, err)
	}
	document[key] = encoded
	data, err := json.MarshalIndent(document, jsonIndentPrefix, jsonIndent)
	if err != nil {
		return fmt.Errorf(errorEncodeFormat, store.path, err)
	}
	return atomicWrite(store.path, data)
}

func (store *FileStore) ensureDirectory() error {
	directory := filepath.Dir(store.path)
	if err := os.MkdirAll(directory, directoryPermissions); err != nil {
		return fmt.Errorf(errorCreateDirFormat, directory, err)
	}
	return nil
}

func (store *FileStore) readDocument() (map[string]json.RawMessage, error) {
	document := map[string]json.RawMessage{}
	data, err := os.ReadFile(store.path)
	if errors.Is(err, os.ErrNotExist) {
		return document, nil
	}
	if err != nil {
		return nil, fmt.Errorf(errorReadFormat, store.path, err)
	}
	if len(data) == 0 {
		return document, nil
	}
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf(errorDecodeFormat, store.path, err)
	}
	return document, nil
}

// atomicWrite writes data to a temp file in the target directory and renames it into place.
func atomicWrite(path string, data []byte) error {
	directory := filepath.Dir(path)
	tempFile, err := os.CreateTemp(directory, temporaryFilePattern)
	if err != nil {
		return fmt.Errorf(errorCreateTempFormat, directory, err)
	}
	tempPath := tempFile.Name()
	committed := false
	defer func() {
		if !committed {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf(errorWriteTempFormat, tempPath, err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf(errorWriteTempFormat, tempPath, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf(errorWriteTempFormat, tempPath, err)
	}
	if err := os.Chmod(tempPath, filePermissions); err != nil {
		return fmt.Errorf(errorWriteTempFormat, tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf(errorRenameFormat, path, err)
	}
	committed = true
	return nil
}

var _ Store = (*FileStore)(nil)
