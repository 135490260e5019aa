// Package filesystem describes the host file access contract used by the workspace core.
package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Handle is an opaque reference to a file or directory on the host.
type Handle string

// EntryKind classifies a listed or stat'ed entry.
type EntryKind uint8

const (
	KindOther EntryKind = iota
	KindFile
	KindDirectory
)

// DirEntry is one element of a directory listing.
type DirEntry struct {
	Name      string
	Kind      EntryKind
	IsSymlink bool
}

// FileInfo is the result of a stat call. Symbolic links are followed.
type FileInfo struct {
	Size    int64
	Kind    EntryKind
	ModTime time.Time
}

// ErrUnavailable marks a file or directory that vanished or cannot be accessed.
var ErrUnavailable = errors.New("filesystem entry unavailable")

// FileSystem lists, stats and reads host entries.
type FileSystem interface {
	ReadDir(ctx context.Context, directory Handle) ([]DirEntry, error)
	Stat(ctx context.Context, handle Handle) (FileInfo, error)
	ReadFile(ctx context.Context, handle Handle) ([]byte, error)
	// RealPath resolves every symbolic link along handle.
	RealPath(ctx context.Context, handle Handle) (Handle, error)
	Join(directory Handle, name string) Handle
}

// OS implements FileSystem over the local disk.
type OS struct{}

// NewOS constructs the local disk implementation.
func NewOS() *OS {
	return &OS{}
}

// ReadDir lists the directory without following links.
func (local *OS) ReadDir(ctx context.Context, directory Handle) ([]DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	directoryEntries, readError := os.ReadDir(string(directory))
	if readError != nil {
		return nil, wrapUnavailable(readError)
	}
	entries := make([]DirEntry, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		mode := directoryEntry.Type()
		entries = append(entries, DirEntry{
			Name:      directoryEntry.Name(),
			Kind:      kindFromMode(mode),
			IsSymlink: mode&fs.ModeSymlink != 0,
		})
	}
	return entries, nil
}

// Stat follows symbolic links.
func (local *OS) Stat(ctx context.Context, handle Handle) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	info, statError := os.Stat(string(handle))
	if statError != nil {
		return FileInfo{}, wrapUnavailable(statError)
	}
	return FileInfo{Size: info.Size(), Kind: kindFromMode(info.Mode()), ModTime: info.ModTime()}, nil
}

// ReadFile returns the full file content.
//
// #nosec G304
func (local *OS) ReadFile(ctx context.Context, handle Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, readError := os.ReadFile(string(handle))
	if readError != nil {
		return nil, wrapUnavailable(readError)
	}
	return data, nil
}

// RealPath returns the absolute path of handle with every link resolved.
func (local *OS) RealPath(ctx context.Context, handle Handle) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	absolute, absError := filepath.Abs(string(handle))
	if absError != nil {
		return "", absError
	}
	resolved, resolveError := filepath.EvalSymlinks(absolute)
	if resolveError != nil {
		return "", wrapUnavailable(resolveError)
	}
	return Handle(resolved), nil
}

// Join appends a child name to a directory handle.
func (local *OS) Join(directory Handle, name string) Handle {
	return Handle(filepath.Join(string(directory), name))
}

func kindFromMode(mode fs.FileMode) EntryKind {
	switch {
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

func wrapUnavailable(cause error) error {
	if errors.Is(cause, fs.ErrNotExist) || errors.Is(cause, fs.ErrPermission) {
		return errors.Join(ErrUnavailable, cause)
	}
	return cause
}

var _ FileSystem = (*OS)(nil)
