package concurrency

// Job is a described unit of work submitted to a Pool. It is produced once,
// executed exactly once by some worker, then discarded.
type Job struct {
	// Description names the job for logging and diagnostics.
	Description string

	// Run performs the work. It is executed synchronously on a pool worker;
	// panics are contained by the worker and do not kill it.
	Run func()
}

// NewJob creates a Job from a description and a function.
func NewJob(description string, run func()) Job {
	return Job{Description: description, Run: run}
}
