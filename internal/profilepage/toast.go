package profilepage

import (
	"fmt"
	"io"
	"sync"
)

// Toaster shows transient notifications.
type Toaster interface {
	Success(msg string)
	Info(msg string)
	Error(msg string)
}

// WriterToaster prints notifications, one per line.
type WriterToaster struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterToaster prints to w.
func NewWriterToaster(w io.Writer) *WriterToaster { return &WriterToaster{w: w} }

func (t *WriterToaster) Success(msg string) { t.print("✔", msg) }
func (t *WriterToaster) Info(msg string)    { t.print("ℹ", msg) }
func (t *WriterToaster) Error(msg string)   { t.print("✖", msg) }

func (t *WriterToaster) print(icon, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s %s\n", icon, msg)
}
