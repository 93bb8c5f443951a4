package worker

import (
	"context"
	"io"
	"time"
)

// Launcher starts one worker and hands back a handle the caller owns.
type Launcher interface {
	Launch(ctx context.Context, name string, argv []string) (Handle, error)
}

// Handle is a running worker.
type Handle interface {
	// Stdout streams the worker's standard output.
	Stdout() io.Reader
	// Stop asks the worker to exit and forces it after grace.
	Stop(grace time.Duration) error
	// Close force-kills anything left, reaps the worker and releases the stream.
	Close() error
}
