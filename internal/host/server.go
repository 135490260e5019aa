// Package host exposes a controller session to an editor host over HTTP.
// Intents are posted as JSON messages and events stream back as one JSON object per line.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/contextkit/internal/controller"
	"github.com/temirov/contextkit/internal/utils"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	defaultSubscriberBuffer = 256
	maxIntentBytes          = 1 << 20
	headerContentType       = "Content-Type"
	mimeTypeJSON            = "application/json"
	mimeTypeJSONLines       = "application/x-ndjson"
	capabilitiesPath        = "/capabilities"
	intentsPath             = "/intents"
	eventsPath              = "/events"
	rootPath                = "/"
	errorFieldName          = "error"
	statusFieldName         = "status"
	statusAccepted          = "accepted"

	errorListenFormat   = "listen on %s: %w"
	errorServeFormat    = "serve host: %w"
	errorShutdownFormat = "shutdown host: %w"
	errorReadBodyFormat = "read request body: %v"
	errorEncodeFormat   = "encode response: %v"

	logMessageSubscriberDropped = "event subscriber fell behind and was disconnected"
	logMessageIntentRejected    = "intent rejected"
	logFieldSubscriber          = "subscriber"
)

// Capability describes one endpoint offered to the host.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Capabilities lists the endpoints served.
var Capabilities = []Capability{
	{Name: "intents", Description: "POST one intent message to " + intentsPath},
	{Name: "events", Description: "GET " + eventsPath + " to stream event messages, one JSON object per line"},
}

// Session is the controller surface the server drives.
type Session interface {
	SubmitJSON(ctx context.Context, data []byte) error
	Events() <-chan controller.Event
}

// Config defines runtime options for the server.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	// SubscriberBuffer is the number of events queued per stream before it is disconnected.
	SubscriberBuffer int
	Logger           *zap.Logger
}

// Server relays intents to a session and fans its events out to every open stream.
type Server struct {
	config  Config
	session Session
	logger  *zap.Logger

	mutex       sync.Mutex
	subscribers map[int]chan controller.Event
	nextID      int
	closed      bool
	stopped     chan struct{}
}

// NewServer creates a Server with defaults applied.
func NewServer(session Session, config Config) *Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.SubscriberBuffer <= 0 {
		normalized.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Server{
		config:      normalized,
		session:     session,
		logger:      utils.LoggerOrNop(config.Logger),
		subscribers: map[int]chan controller.Event{},
		stopped:     make(chan struct{}),
	}
}

// Run serves until ctx is canceled or the session's event stream ends.
// The notify callback receives the bound address once the listener is active.
func (server *Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf(errorListenFormat, server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	router := http.NewServeMux()
	router.HandleFunc(capabilitiesPath, server.handleCapabilities)
	router.HandleFunc(intentsPath, server.handleIntent)
	router.HandleFunc(eventsPath, server.handleEvents)
	router.HandleFunc(rootPath, server.handleRoot)

	group, groupCtx := errgroup.WithContext(ctx)
	httpServer := &http.Server{
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return groupCtx },
	}

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf(errorServeFormat, serveErr)
		}
		return nil
	})

	group.Go(func() error {
		server.broadcast(groupCtx)
		return nil
	})

	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		select {
		case <-groupCtx.Done():
		case <-server.stopped:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf(errorShutdownFormat, shutdownErr)
		}
		return nil
	})

	return group.Wait()
}

// broadcast copies every session event to each subscriber. A subscriber whose queue is full
// is disconnected; it reconnects and sends a ready intent to resynchronise.
func (server *Server) broadcast(ctx context.Context) {
	defer server.closeSubscribers()
	events := server.session.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			server.mutex.Lock()
			for id, subscriber := range server.subscribers {
				select {
				case subscriber <- event:
				default:
					server.logger.Warn(logMessageSubscriberDropped, zap.Int(logFieldSubscriber, id))
					close(subscriber)
					delete(server.subscribers, id)
				}
			}
			server.mutex.Unlock()
		}
	}
}

func (server *Server) closeSubscribers() {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	for id, subscriber := range server.subscribers {
		close(subscriber)
		delete(server.subscribers, id)
	}
	server.closed = true
	close(server.stopped)
}

// subscribe registers a stream. The returned channel is nil once the server has stopped.
func (server *Server) subscribe() (int, <-chan controller.Event) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if server.closed {
		return 0, nil
	}
	server.nextID++
	subscriber := make(chan controller.Event, server.config.SubscriberBuffer)
	server.subscribers[server.nextID] = subscriber
	return server.nextID, subscriber
}

func (server *Server) unsubscribe(id int) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if subscriber, found := server.subscribers[id]; found {
		close(subscriber)
		delete(server.subscribers, id)
	}
}

func (server *Server) handleCapabilities(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload := struct {
		Version      int          `json:"version"`
		Capabilities []Capability `json:"capabilities"`
	}{Version: controller.SchemaVersion, Capabilities: Capabilities}
	server.writeJSON(writer, http.StatusOK, payload)
}

func (server *Server) handleRoot(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Path != rootPath {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

func (server *Server) handleIntent(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, readErr := io.ReadAll(io.LimitReader(request.Body, maxIntentBytes))
	if readErr != nil {
		server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: fmt.Sprintf(errorReadBodyFormat, readErr)})
		return
	}
	if submitErr := server.session.SubmitJSON(request.Context(), body); submitErr != nil {
		server.logger.Debug(logMessageIntentRejected, zap.Error(submitErr))
		server.writeJSON(writer, statusCodeFromError(submitErr), map[string]string{errorFieldName: submitErr.Error()})
		return
	}
	server.writeJSON(writer, http.StatusAccepted, map[string]string{statusFieldName: statusAccepted})
}

func (server *Server) handleEvents(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, events := server.subscribe()
	if events == nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer server.unsubscribe(id)

	writer.Header().Set(headerContentType, mimeTypeJSONLines)
	writer.WriteHeader(http.StatusOK)
	flusher, canFlush := writer.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}
	encoder := json.NewEncoder(writer)
	for {
		select {
		case <-request.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if encodeErr := encoder.Encode(event); encodeErr != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func (server *Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := map[string]string{errorFieldName: fmt.Sprintf(errorEncodeFormat, encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}

func statusCodeFromError(err error) int {
	switch {
	case errors.Is(err, controller.ErrUnknownIntent), errors.Is(err, controller.ErrMalformedIntent):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
