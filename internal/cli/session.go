package cli

import (
	"context"
	"errors"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/services/clipboard"
	"github.com/temirov/contextkit/internal/types"
)

var errSessionClosed = errors.New("session closed before becoming idle")

// session drives a controller synchronously: every intent is followed by a wait for idle.
type session struct {
	controller *controller.Controller
	cancel     context.CancelFunc
	finished   chan struct{}

	snapshot *types.UIState
	summary  *controller.SummaryEvent
	copied   *controller.CopyEvent
	statuses []controller.StatusEvent
	files    []string
}

type sessionOptions struct {
	respectIgnore bool
	copier        clipboard.Copier
}

// startSession runs a full-mode controller over the application's roots.
func (application *application) startSession(ctx context.Context, options sessionOptions) *session {
	defaults := application.defaults()
	defaults.RespectIgnore = options.respectIgnore
	instance := controller.New(controller.Dependencies{
		FileSystem: application.dependencies.fileSystem,
		Clipboard:  options.copier,
		Prompts:    application.prompts,
		Logger:     application.logger,
	}, controller.Options{
		Roots:       application.roots,
		Lazy:        false,
		Concurrency: application.settings.Concurrency,
		MaxFileSize: application.settings.MaxFileSize,
		Defaults:    defaults,
	})
	runCtx, cancel := context.WithCancel(ctx)
	started := &session{controller: instance, cancel: cancel, finished: make(chan struct{})}
	go func() {
		defer close(started.finished)
		_ = instance.Run(runCtx)
	}()
	return started
}

// send submits each intent in turn and records events until the controller is idle again.
func (session *session) send(ctx context.Context, intents ...controller.Intent) error {
	for _, intent := range intents {
		if err := session.controller.Submit(ctx, intent); err != nil {
			return err
		}
		if err := session.awaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (session *session) awaitIdle(ctx context.Context) error {
	events := session.controller.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, open := <-events:
			if !open {
				return errSessionClosed
			}
			if session.record(event) {
				return nil
			}
		}
	}
}

func (session *session) record(event controller.Event) bool {
	switch event.Kind {
	case controller.EventKindSnapshot:
		session.snapshot = event.State
	case controller.EventKindSummary:
		session.summary = event.Summary
	case controller.EventKindCopied:
		session.copied = event.Copy
	case controller.EventKindStatus:
		if event.Status != nil {
			session.statuses = append(session.statuses, *event.Status)
		}
	case controller.EventKindFileIndex:
		session.files = event.Files
	case controller.EventKindIdle:
		return true
	}
	return false
}

// nodes returns the tree of the latest snapshot.
func (session *session) nodes() []types.Node {
	if session.snapshot == nil {
		return nil
	}
	return session.snapshot.Nodes
}

// takeStatuses returns and clears the statuses recorded so far.
func (session *session) takeStatuses() []controller.StatusEvent {
	statuses := session.statuses
	session.statuses = nil
	return statuses
}

func (session *session) close() {
	session.cancel()
	<-session.finished
}
