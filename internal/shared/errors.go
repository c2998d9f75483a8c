package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Scheduler errors
	ErrUnknownTask        = fmt.Errorf("unknown task")
	ErrAlreadyRunning     = fmt.Errorf("task is already running")
	ErrDependenciesUnmet  = fmt.Errorf("dependencies not met")
	ErrDependencyCycle    = fmt.Errorf("dependency cycle detected")
	ErrTaskFailed         = fmt.Errorf("task failed")
	ErrSchedulerRunning   = fmt.Errorf("scheduler already running")
	ErrSchedulerStopped   = fmt.Errorf("scheduler not running")
	ErrShutdownTimeout    = fmt.Errorf("timed out waiting for scheduler to stop")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// API and store errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrNotFound            = fmt.Errorf("not found")
	ErrTrackNotFound       = fmt.Errorf("track not found")
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")
	ErrUnsupportedPlatform = fmt.Errorf("unsupported playlist platform")
	ErrCorruptAudio        = fmt.Errorf("audio file failed integrity check")
	ErrUnsupportedFile     = fmt.Errorf("unsupported file type")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
