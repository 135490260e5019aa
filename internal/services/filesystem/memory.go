package filesystem

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process FileSystem. Handles are slash-separated paths rooted at "/".
type Memory struct {
	mutex           sync.Mutex
	files           map[string][]byte
	directories     map[string]struct{}
	links           map[string]string
	unlistable      map[string]struct{}
	unreadable      map[string]struct{}
	modTimes        map[string]time.Time
	readDirCalls    map[string]int
	inFlight        int
	maximumInFlight int
	delay           time.Duration
}

// NewMemory constructs an empty in-memory filesystem containing only "/".
func NewMemory() *Memory {
	return &Memory{
		files:        map[string][]byte{},
		directories:  map[string]struct{}{"/": {}},
		links:        map[string]string{},
		unlistable:   map[string]struct{}{},
		unreadable:   map[string]struct{}{},
		modTimes:     map[string]time.Time{},
		readDirCalls: map[string]int{},
	}
}

// AddFile creates a file and every missing parent directory.
func (memory *Memory) AddFile(filePath string, content string) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	cleaned := path.Clean("/" + filePath)
	memory.ensureParents(cleaned)
	memory.files[cleaned] = []byte(content)
	memory.modTimes[cleaned] = time.Now()
	return memory
}

// AddDirectory creates an empty directory and every missing parent.
func (memory *Memory) AddDirectory(directoryPath string) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	cleaned := path.Clean("/" + directoryPath)
	memory.ensureParents(cleaned)
	memory.directories[cleaned] = struct{}{}
	return memory
}

// AddSymlink creates a link at linkPath pointing to target. A missing target makes a broken link.
func (memory *Memory) AddSymlink(linkPath string, target string) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	cleaned := path.Clean("/" + linkPath)
	memory.ensureParents(cleaned)
	memory.links[cleaned] = path.Clean("/" + target)
	return memory
}

// Remove deletes a file, link or directory subtree.
func (memory *Memory) Remove(entryPath string) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	cleaned := path.Clean("/" + entryPath)
	prefix := cleaned + "/"
	for filePath := range memory.files {
		if filePath == cleaned || strings.HasPrefix(filePath, prefix) {
			delete(memory.files, filePath)
		}
	}
	for directoryPath := range memory.directories {
		if directoryPath == cleaned || strings.HasPrefix(directoryPath, prefix) {
			delete(memory.directories, directoryPath)
		}
	}
	delete(memory.links, cleaned)
	return memory
}

// FailListing makes ReadDir on the directory fail.
func (memory *Memory) FailListing(directoryPath string) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.unlistable[path.Clean("/"+directoryPath)] = struct{}{}
	return memory
}

// FailReading makes ReadFile on the file fail.
func (memory *Memory) FailReading(filePath string) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.unreadable[path.Clean("/"+filePath)] = struct{}{}
	return memory
}

// SetDelay makes every call sleep, exposing concurrent callers.
func (memory *Memory) SetDelay(delay time.Duration) *Memory {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.delay = delay
	return memory
}

// ReadDirCalls returns how many times the directory was listed.
func (memory *Memory) ReadDirCalls(directoryPath string) int {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	return memory.readDirCalls[path.Clean("/"+directoryPath)]
}

// MaximumInFlight returns the highest number of simultaneous calls observed.
func (memory *Memory) MaximumInFlight() int {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	return memory.maximumInFlight
}

// ReadDir lists immediate children sorted by name.
func (memory *Memory) ReadDir(ctx context.Context, directory Handle) ([]DirEntry, error) {
	release := memory.enter()
	defer release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	directoryPath, resolved := memory.resolve(path.Clean(string(directory)))
	memory.readDirCalls[path.Clean(string(directory))]++
	if !resolved {
		return nil, fmt.Errorf("read %s: %w", directory, ErrUnavailable)
	}
	if _, isDirectory := memory.directories[directoryPath]; !isDirectory {
		return nil, fmt.Errorf("read %s: not a directory: %w", directory, ErrUnavailable)
	}
	if _, failing := memory.unlistable[directoryPath]; failing {
		return nil, fmt.Errorf("read %s: permission denied: %w", directory, ErrUnavailable)
	}
	seen := map[string]DirEntry{}
	collect := func(candidate string, kind EntryKind, isLink bool) {
		if candidate == directoryPath || path.Dir(candidate) != directoryPath {
			return
		}
		name := path.Base(candidate)
		seen[name] = DirEntry{Name: name, Kind: kind, IsSymlink: isLink}
	}
	for filePath := range memory.files {
		collect(filePath, KindFile, false)
	}
	for childDirectory := range memory.directories {
		collect(childDirectory, KindDirectory, false)
	}
	for linkPath := range memory.links {
		collect(linkPath, KindOther, true)
	}
	entries := make([]DirEntry, 0, len(seen))
	for _, entry := range seen {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(left, right int) bool { return entries[left].Name < entries[right].Name })
	return entries, nil
}

// Stat follows links.
func (memory *Memory) Stat(ctx context.Context, handle Handle) (FileInfo, error) {
	release := memory.enter()
	defer release()
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	resolvedPath, resolved := memory.resolve(path.Clean(string(handle)))
	if !resolved {
		return FileInfo{}, fmt.Errorf("stat %s: %w", handle, ErrUnavailable)
	}
	if content, isFile := memory.files[resolvedPath]; isFile {
		return FileInfo{Size: int64(len(content)), Kind: KindFile, ModTime: memory.modTimes[resolvedPath]}, nil
	}
	if _, isDirectory := memory.directories[resolvedPath]; isDirectory {
		return FileInfo{Kind: KindDirectory}, nil
	}
	return FileInfo{}, fmt.Errorf("stat %s: %w", handle, ErrUnavailable)
}

// ReadFile returns a copy of the stored content.
func (memory *Memory) ReadFile(ctx context.Context, handle Handle) ([]byte, error) {
	release := memory.enter()
	defer release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	resolvedPath, resolved := memory.resolve(path.Clean(string(handle)))
	if !resolved {
		return nil, fmt.Errorf("read %s: %w", handle, ErrUnavailable)
	}
	if _, failing := memory.unreadable[resolvedPath]; failing {
		return nil, fmt.Errorf("read %s: permission denied: %w", handle, ErrUnavailable)
	}
	content, isFile := memory.files[resolvedPath]
	if !isFile {
		return nil, fmt.Errorf("read %s: %w", handle, ErrUnavailable)
	}
	return append([]byte(nil), content...), nil
}

// RealPath resolves links along handle.
func (memory *Memory) RealPath(ctx context.Context, handle Handle) (Handle, error) {
	release := memory.enter()
	defer release()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	resolvedPath, resolved := memory.resolve(string(handle))
	if !resolved {
		return "", fmt.Errorf("resolve %s: %w", handle, ErrUnavailable)
	}
	return Handle(resolvedPath), nil
}

// Join appends a child name to a directory handle.
func (memory *Memory) Join(directory Handle, name string) Handle {
	return Handle(path.Join(string(directory), name))
}

func (memory *Memory) ensureParents(entryPath string) {
	for parent := path.Dir(entryPath); ; parent = path.Dir(parent) {
		memory.directories[parent] = struct{}{}
		if parent == "/" {
			return
		}
	}
}

// maximumLinkHops mirrors the host limit after which resolution fails with a loop error.
const maximumLinkHops = 40

// resolve follows links in every path component and reports whether the final target exists.
func (memory *Memory) resolve(entryPath string) (string, bool) {
	current := "/"
	pending := strings.Split(strings.TrimPrefix(path.Clean(entryPath), "/"), "/")
	hops := 0
	for len(pending) > 0 {
		segment := pending[0]
		pending = pending[1:]
		if segment == "" {
			continue
		}
		candidate := path.Join(current, segment)
		target, isLink := memory.links[candidate]
		if !isLink {
			current = candidate
			continue
		}
		hops++
		if hops > maximumLinkHops {
			return "", false
		}
		pending = append(strings.Split(strings.TrimPrefix(target, "/"), "/"), pending...)
		current = "/"
	}
	_, isFile := memory.files[current]
	_, isDirectory := memory.directories[current]
	return current, isFile || isDirectory
}

func (memory *Memory) enter() func() {
	memory.mutex.Lock()
	memory.inFlight++
	if memory.inFlight > memory.maximumInFlight {
		memory.maximumInFlight = memory.inFlight
	}
	delay := memory.delay
	memory.mutex.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return func() {
		memory.mutex.Lock()
		memory.inFlight--
		memory.mutex.Unlock()
	}
}

var _ FileSystem = (*Memory)(nil)
