package concurrency

import "errors"

var (
	// ErrQueueClosed is returned when pushing to a closed queue.
	ErrQueueClosed = errors.New("concurrency: queue closed")

	// ErrPoolNotRunning is returned by Submit before Start or after Terminate.
	ErrPoolNotRunning = errors.New("concurrency: pool is not running")

	// ErrPoolRunning is returned by Start on a pool that already ran.
	ErrPoolRunning = errors.New("concurrency: pool already started")

	// ErrNilJob is returned when submitting a job without a Run function.
	ErrNilJob = errors.New("concurrency: job has no Run function")
)
