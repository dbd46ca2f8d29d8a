package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

// ConnectFunc opens a session with the server.
type ConnectFunc func(ctx context.Context) (service.Session, error)

// Context is handed to plugins.  It carries the output channels, the logger, and a lazily
// opened session.
type Context struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger ome.Logger

	connect ConnectFunc

	mu   sync.Mutex
	sess service.Session
}

// NewContext returns a context writing to the process's standard streams.
func NewContext(connect ConnectFunc, logger ome.Logger) *Context {
	return &Context{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger, connect: connect}
}

// Out prints a line on the output channel.
func (c *Context) Out(format string, args ...interface{}) {
	fmt.Fprintf(c.Stdout, format+"\n", args...)
}

// Err prints a line on the error channel.
func (c *Context) Err(format string, args ...interface{}) {
	fmt.Fprintf(c.Stderr, format+"\n", args...)
}

// Die returns an error that ends the current command with the given exit code.
// The message is printed on the error channel by the host.
func (c *Context) Die(code int, msg string) error {
	return &ome.UsageError{Code: code, Msg: msg}
}

// Conn returns the session, connecting on first use.
func (c *Context) Conn(ctx context.Context) (service.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return c.sess, nil
	}
	if c.connect == nil {
		return nil, fmt.Errorf("no server connection configured")
	}
	sess, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	return sess, nil
}

// Close ends the session if one was opened.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close()
	c.sess = nil
	return err
}
