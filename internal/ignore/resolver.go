package ignore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/utils"
)

// fileSignature identifies one revision of a .gitignore file.
type fileSignature struct {
	size    int64
	modTime time.Time
}

func (signature fileSignature) matches(other fileSignature) bool {
	return signature.size == other.size && signature.modTime.Equal(other.modTime)
}

type cacheEntry struct {
	signature fileSignature
	patterns  []Pattern
}

// Resolver builds scopes for directories, caching parsed .gitignore files per directory handle.
// It is safe for concurrent use by the loader's workers.
type Resolver struct {
	fileSystem filesystem.FileSystem
	logger     *zap.Logger
	mutex      sync.Mutex
	cache      map[filesystem.Handle]cacheEntry
}

// NewResolver constructs a Resolver reading through fileSystem.
func NewResolver(fileSystem filesystem.FileSystem, logger *zap.Logger) *Resolver {
	return &Resolver{
		fileSystem: fileSystem,
		logger:     utils.LoggerOrNop(logger),
		cache:      map[filesystem.Handle]cacheEntry{},
	}
}

// Resolve returns the scope governing the children of directory.
// entries is the directory listing already fetched by the caller; when it holds no
// .gitignore file the parent scope is returned as is.
func (resolver *Resolver) Resolve(ctx context.Context, directory filesystem.Handle, entries []filesystem.DirEntry, parent *Scope, relativePrefix string) *Scope {
	if parent == nil {
		parent = EmptyScope()
	}
	if !containsGitignore(entries) {
		return parent
	}
	patterns := resolver.load(ctx, directory, relativePrefix)
	return parent.Extend(patterns)
}

// Reset drops every cached .gitignore.
func (resolver *Resolver) Reset() {
	resolver.mutex.Lock()
	defer resolver.mutex.Unlock()
	resolver.cache = map[filesystem.Handle]cacheEntry{}
}

// CachedDirectories returns how many directories currently hold a cached entry.
func (resolver *Resolver) CachedDirectories() int {
	resolver.mutex.Lock()
	defer resolver.mutex.Unlock()
	return len(resolver.cache)
}

func (resolver *Resolver) load(ctx context.Context, directory filesystem.Handle, relativePrefix string) []Pattern {
	gitignoreHandle := resolver.fileSystem.Join(directory, utils.GitIgnoreFileName)
	info, statError := resolver.fileSystem.Stat(ctx, gitignoreHandle)
	signature := fileSignature{size: info.Size, modTime: info.ModTime}

	resolver.mutex.Lock()
	cached, found := resolver.cache[directory]
	resolver.mutex.Unlock()
	if found && (statError != nil || cached.signature.matches(signature)) {
		return cached.patterns
	}

	var patterns []Pattern
	content, readError := resolver.fileSystem.ReadFile(ctx, gitignoreHandle)
	if readError != nil {
		resolver.logger.Debug("gitignore unreadable", zap.String("directory", string(directory)), zap.Error(readError))
	} else {
		patterns = ParsePatterns(content, relativePrefix)
	}

	resolver.mutex.Lock()
	resolver.cache[directory] = cacheEntry{signature: signature, patterns: patterns}
	resolver.mutex.Unlock()
	return patterns
}

func containsGitignore(entries []filesystem.DirEntry) bool {
	for _, entry := range entries {
		if entry.Name == utils.GitIgnoreFileName && (entry.Kind == filesystem.KindFile || entry.IsSymlink) {
			return true
		}
	}
	return false
}
