package worker

import "errors"

// Every error returned by Runner.Run wraps exactly one of these.
var (
	ErrSpawn         = errors.New("worker failed to start")
	ErrProtocol      = errors.New("malformed result line")
	ErrMissingResult = errors.New("worker output ended without a result")
	ErrResultTimeout = errors.New("worker produced no result before the deadline")
	ErrInterrupted   = errors.New("sweep interrupted")
)
