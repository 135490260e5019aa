// Package prompts manages saved meta prompts persisted in the key-value store.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/services/storage"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

// StorageKey is the key under which the prompt list is persisted.
const StorageKey = "contextKit.metaPrompts"

const (
	errorLoadFormat          = "load saved prompts: %w"
	errorSaveFormat          = "save saved prompts: %w"
	errorNotFoundFormat      = "%w: %s"
	logMessageDecodeFailed   = "saved prompts unreadable, starting empty"
	logMessageEntryDiscarded = "discarding malformed saved prompt"
	logFieldIndex            = "index"
)

var (
	// ErrPromptNotFound is returned when an id does not name a saved prompt.
	ErrPromptNotFound = errors.New("saved prompt not found")
	// ErrInvalidPrompt is returned when a prompt has no name.
	ErrInvalidPrompt = errors.New("saved prompt requires a name")
)

// storedPrompt mirrors the persisted shape with optional fields so malformed entries can be detected.
type storedPrompt struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
	Body *string `json:"body"`
}

// Store reads and writes saved prompts.
type Store struct {
	storage    storage.Store
	logger     *zap.Logger
	generateID func() string
}

// NewStore constructs a Store over the given key-value storage.
func NewStore(keyValueStore storage.Store, logger *zap.Logger) *Store {
	return &Store{storage: keyValueStore, logger: utils.LoggerOrNop(logger), generateID: uuid.NewString}
}

// Load returns the saved prompts. A stored value that is not a list yields no prompts;
// entries without an id or a name are dropped.
func (store *Store) Load() ([]types.MetaPrompt, error) {
	var raw json.RawMessage
	found, getError := store.storage.Get(StorageKey, &raw)
	if getError != nil {
		return nil, fmt.Errorf(errorLoadFormat, getError)
	}
	if !found {
		return []types.MetaPrompt{}, nil
	}
	return store.decode(raw), nil
}

// Add appends a prompt with a fresh id and returns the updated list.
func (store *Store) Add(name string, body string) ([]types.MetaPrompt, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == utils.EmptyString {
		return nil, ErrInvalidPrompt
	}
	return store.modify(func(prompts []types.MetaPrompt) ([]types.MetaPrompt, error) {
		return append(prompts, types.MetaPrompt{ID: store.generateID(), Name: trimmedName, Body: strings.TrimSpace(body)}), nil
	})
}

// Update replaces the name and body of the prompt with id and returns the updated list.
func (store *Store) Update(id string, name string, body string) ([]types.MetaPrompt, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == utils.EmptyString {
		return nil, ErrInvalidPrompt
	}
	return store.modify(func(prompts []types.MetaPrompt) ([]types.MetaPrompt, error) {
		updated := false
		for index := range prompts {
			if prompts[index].ID == id {
				prompts[index].Name = trimmedName
				prompts[index].Body = strings.TrimSpace(body)
				updated = true
			}
		}
		if !updated {
			return nil, fmt.Errorf(errorNotFoundFormat, ErrPromptNotFound, id)
		}
		return prompts, nil
	})
}

// Delete removes the prompt with id and returns the updated list.
func (store *Store) Delete(id string) ([]types.MetaPrompt, error) {
	return store.modify(func(prompts []types.MetaPrompt) ([]types.MetaPrompt, error) {
		retained := make([]types.MetaPrompt, 0, len(prompts))
		for _, prompt := range prompts {
			if prompt.ID != id {
				retained = append(retained, prompt)
			}
		}
		if len(retained) == len(prompts) {
			return nil, fmt.Errorf(errorNotFoundFormat, ErrPromptNotFound, id)
		}
		return retained, nil
	})
}

// modify applies change to the stored list as one locked read-modify-write.
func (store *Store) modify(change func([]types.MetaPrompt) ([]types.MetaPrompt, error)) ([]types.MetaPrompt, error) {
	var updated []types.MetaPrompt
	var changeError error
	modifyError := store.storage.Modify(StorageKey, func(current json.RawMessage) (any, error) {
		var prompts []types.MetaPrompt
		if current == nil {
			prompts = []types.MetaPrompt{}
		} else {
			prompts = store.decode(current)
		}
		updated, changeError = change(prompts)
		if changeError != nil {
			return nil, changeError
		}
		return updated, nil
	})
	if changeError != nil {
		return nil, changeError
	}
	if modifyError != nil {
		return nil, fmt.Errorf(errorSaveFormat, modifyError)
	}
	return updated, nil
}

func (store *Store) decode(raw json.RawMessage) []types.MetaPrompt {
	var entries []json.RawMessage
	if decodeError := json.Unmarshal(raw, &entries); decodeError != nil {
		store.logger.Warn(logMessageDecodeFailed, zap.Error(decodeError))
		return []types.MetaPrompt{}
	}
	return store.sanitize(entries)
}

func (store *Store) sanitize(entries []json.RawMessage) []types.MetaPrompt {
	prompts := make([]types.MetaPrompt, 0, len(entries))
	for index, rawEntry := range entries {
		var entry storedPrompt
		decodeError := json.Unmarshal(rawEntry, &entry)
		if decodeError != nil || entry.ID == nil || *entry.ID == utils.EmptyString || entry.Name == nil || *entry.Name == utils.EmptyString {
			store.logger.Debug(logMessageEntryDiscarded, zap.Int(logFieldIndex, index))
			continue
		}
		prompt := types.MetaPrompt{ID: *entry.ID, Name: *entry.Name}
		if entry.Body != nil {
			prompt.Body = *entry.Body
		}
		prompts = append(prompts, prompt)
	}
	return prompts
}
