// Package estimate computes the live size and token summary of a selection.
package estimate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/tokenizer"
	"github.com/temirov/contextkit/internal/types"
	"github.com/temirov/contextkit/internal/utils"
)

const (
	logMessageStatFailed  = "selection stat failed"
	logMessageCountFailed = "token count failed"
	logFieldPath          = "path"
)

// Result is a summary plus the sizes learned while computing it.
type Result struct {
	Summary types.SelectionSummary
	// Sizes holds newly stat'ed sizes keyed by file path, for the owner to cache.
	Sizes map[string]int64
}

// Summarize totals the byte size of entries, stat'ing those without a cached size with at
// most concurrency calls in flight. Entries whose stat fails are left out of the total.
// TokenCount is ceil(total / 4), an estimate.
func Summarize(ctx context.Context, fileSystem filesystem.FileSystem, entries []types.FileRecord, concurrency int, logger *zap.Logger) (Result, error) {
	logger = utils.LoggerOrNop(logger)
	var mutex sync.Mutex
	var totalBytes int64
	sizes := map[string]int64{}

	statError := utils.ForEachBounded(ctx, len(entries), concurrency, func(workerCtx context.Context, index int) error {
		entry := entries[index]
		if entry.HasSize() {
			mutex.Lock()
			totalBytes += *entry.Size
			mutex.Unlock()
			return nil
		}
		info, err := fileSystem.Stat(workerCtx, entry.Handle)
		if err != nil {
			if ctxError := workerCtx.Err(); ctxError != nil {
				return ctxError
			}
			logger.Debug(logMessageStatFailed, zap.String(logFieldPath, entry.Path), zap.Error(err))
			return nil
		}
		mutex.Lock()
		totalBytes += info.Size
		sizes[entry.Path] = info.Size
		mutex.Unlock()
		return nil
	})
	if statError != nil {
		return Result{}, statError
	}
	return Result{
		Summary: types.SelectionSummary{
			Count:      len(entries),
			TokenCount: utils.EstimateTokens(totalBytes),
			TotalBytes: totalBytes,
		},
		Sizes: sizes,
	}, nil
}

// TokenCount is an exact token count over a selection.
type TokenCount struct {
	Tokens  int
	Counted int
	Skipped int
}

// CountTokens counts tokens of every entry with counter, reading at most concurrency files at
// once. Unreadable, binary and oversize files are counted as skipped.
func CountTokens(ctx context.Context, fileSystem filesystem.FileSystem, entries []types.FileRecord, counter tokenizer.Counter, concurrency int, logger *zap.Logger) (TokenCount, error) {
	logger = utils.LoggerOrNop(logger)
	var mutex sync.Mutex
	var total TokenCount

	countError := utils.ForEachBounded(ctx, len(entries), concurrency, func(workerCtx context.Context, index int) error {
		entry := entries[index]
		if entry.HasSize() && *entry.Size > utils.MaxFileSizeBytes {
			mutex.Lock()
			total.Skipped++
			mutex.Unlock()
			return nil
		}
		content, err := fileSystem.ReadFile(workerCtx, entry.Handle)
		if err != nil {
			if ctxError := workerCtx.Err(); ctxError != nil {
				return ctxError
			}
			logger.Debug(logMessageCountFailed, zap.String(logFieldPath, entry.Path), zap.Error(err))
		}
		tokens, counted := 0, false
		if err == nil && int64(len(content)) <= utils.MaxFileSizeBytes {
			tokens, counted = tokenizer.CountContent(counter, content)
		}
		mutex.Lock()
		defer mutex.Unlock()
		if !counted {
			total.Skipped++
			return nil
		}
		total.Tokens += tokens
		total.Counted++
		return nil
	})
	if countError != nil {
		return TokenCount{}, countError
	}
	return total, nil
}
