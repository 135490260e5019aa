// Package controller owns a session's state and serializes every mutation through one loop.
//
// Intents arrive through Submit. Filesystem work runs on worker goroutines and hands a
// completion back to the loop, which applies it only if the generation it was started
// under is still current. Every state change is published as an Event.
package controller

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/temirov/contextkit/internal/prompts"
	"github.com/temirov/contextkit/internal/services/clipboard"
	"github.com/temirov/contextkit/internal/services/filesystem"
	"github.com/temirov/contextkit/internal/state"
	"github.com/temirov/contextkit/internal/utils"
	"github.com/temirov/contextkit/internal/workspace"
)

// ErrStopped is returned by Submit after Run has returned.
var ErrStopped = errors.New("controller stopped")

const (
	intentBufferSize     = 64
	completionBufferSize = 64
	eventBufferSize      = 256
	logMessageDropped    = "intent dropped"
)

// Dependencies are the collaborators of a Controller. Clipboard and Prompts may be nil.
type Dependencies struct {
	FileSystem filesystem.FileSystem
	Clipboard  clipboard.Copier
	Prompts    *prompts.Store
	Logger     *zap.Logger
}

// Options configures a Controller.
type Options struct {
	Roots []workspace.Root
	// Lazy loads the tree one folder at a time; the full file index still loads in the background.
	Lazy        bool
	Concurrency int
	MaxFileSize int64
	Defaults    state.Defaults
	// Changes triggers a refresh on every receive.
	Changes <-chan struct{}
}

type completion func(ctx context.Context)

// Controller is the single owner of one session.
type Controller struct {
	fileSystem filesystem.FileSystem
	clipboard  clipboard.Copier
	prompts    *prompts.Store
	logger     *zap.Logger
	options    Options

	state  *state.State
	loader *workspace.Loader

	intents     chan Intent
	completions chan completion
	events      chan Event
	done        chan struct{}

	generation   uint64
	summaryToken uint64
	outstanding  int
	busy         bool
}

// New constructs a Controller. Call Run to start it.
func New(dependencies Dependencies, options Options) *Controller {
	logger := utils.LoggerOrNop(dependencies.Logger)
	if options.Concurrency <= 0 {
		options.Concurrency = utils.DefaultConcurrency
	}
	if options.MaxFileSize <= 0 {
		options.MaxFileSize = utils.MaxFileSizeBytes
	}
	return &Controller{
		fileSystem: dependencies.FileSystem,
		clipboard:  dependencies.Clipboard,
		prompts:    dependencies.Prompts,
		logger:     logger,
		options:    options,
		state:      state.New(options.Defaults),
		loader: workspace.NewLoader(dependencies.FileSystem, nil, logger, workspace.Options{
			RespectIgnore: options.Defaults.RespectIgnore,
			Concurrency:   options.Concurrency,
		}),
		intents:     make(chan Intent, intentBufferSize),
		completions: make(chan completion, completionBufferSize),
		events:      make(chan Event, eventBufferSize),
		done:        make(chan struct{}),
	}
}

// Events delivers every outbound event. It is closed when Run returns.
func (controller *Controller) Events() <-chan Event {
	return controller.events
}

// Submit queues an intent.
func (controller *Controller) Submit(ctx context.Context, intent Intent) error {
	select {
	case <-controller.done:
		return ErrStopped
	default:
	}
	select {
	case controller.intents <- intent:
		return nil
	case <-controller.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitJSON parses a raw message and queues it. Unknown or malformed messages are dropped
// and the parse error is returned.
func (controller *Controller) SubmitJSON(ctx context.Context, data []byte) error {
	intent, parseError := ParseIntent(data)
	if parseError != nil {
		controller.logger.Debug(logMessageDropped, zap.Error(parseError))
		return parseError
	}
	return controller.Submit(ctx, intent)
}

// Run processes intents and completions until ctx is done.
func (controller *Controller) Run(ctx context.Context) error {
	defer close(controller.events)
	defer close(controller.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case intent := <-controller.intents:
			controller.busy = true
			controller.handle(ctx, intent)
		case apply := <-controller.completions:
			controller.busy = true
			controller.outstanding--
			apply(ctx)
		case <-controller.options.Changes:
			controller.busy = true
			controller.refresh(ctx)
		}
		if controller.busy && controller.outstanding == 0 {
			controller.busy = false
			controller.emit(ctx, Event{Kind: EventKindIdle})
		}
	}
}

// spawn runs work on a goroutine and applies its completion on the loop.
func (controller *Controller) spawn(ctx context.Context, work func(ctx context.Context) completion) {
	controller.outstanding++
	go func() {
		apply := work(ctx)
		select {
		case controller.completions <- apply:
		case <-ctx.Done():
		}
	}()
}

func (controller *Controller) emit(ctx context.Context, event Event) {
	event.Version = SchemaVersion
	event.Generation = controller.generation
	select {
	case controller.events <- event:
	case <-ctx.Done():
	}
}

func (controller *Controller) emitSnapshot(ctx context.Context) {
	snapshot := controller.state.Snapshot()
	controller.emit(ctx, Event{Kind: EventKindSnapshot, State: &snapshot})
}
