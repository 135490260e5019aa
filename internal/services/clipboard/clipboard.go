// Package clipboard provides access to the system clipboard.
package clipboard

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available on the host.
var ErrUnsupported = errors.New("system clipboard unavailable")

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a Clipboard service implementation.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

// Recorder is an in-memory Copier that keeps every copied text.
type Recorder struct {
	mutex   sync.Mutex
	copies  []string
	failure error
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent copies return err.
func (recorder *Recorder) FailWith(err error) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.failure = err
}

// Copy records text.
func (recorder *Recorder) Copy(text string) error {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	if recorder.failure != nil {
		return recorder.failure
	}
	recorder.copies = append(recorder.copies, text)
	return nil
}

// Copies returns every recorded text in order.
func (recorder *Recorder) Copies() []string {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return append([]string{}, recorder.copies...)
}

// Last returns the most recent copy and whether one exists.
func (recorder *Recorder) Last() (string, bool) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	if len(recorder.copies) == 0 {
		return "", false
	}
	return recorder.copies[len(recorder.copies)-1], true
}

var (
	_ Copier = (*Service)(nil)
	_ Copier = (*Recorder)(nil)
)
