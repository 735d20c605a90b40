package tasks

// TaskSchedulerInterface defines the interface for the background ingest
// machinery. Used by the main application to manage the worker pool.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
