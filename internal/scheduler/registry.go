package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/repositories"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// Result is what a task function reports back to the registry.
type Result struct {
	OK              bool
	TracksProcessed int
}

// TaskFunc is the body of a task. Returning an error (or panicking) fails the run.
type TaskFunc func(ctx context.Context) (Result, error)

// Definition describes a named task. Definitions are registered once at startup.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	Func        TaskFunc

	// DefaultInterval is used when IntervalEnv is unset or invalid.
	DefaultInterval int
	// IntervalEnv names the variable overriding the interval in minutes. It is read on every lookup.
	IntervalEnv  string
	Dependencies []string
	Enabled      bool
}

// IntervalMinutes returns the current interval in minutes.
func (d Definition) IntervalMinutes() int {
	return shared.IntervalFromEnv(d.IntervalEnv, d.DefaultInterval)
}

// Interval returns the current interval.
func (d Definition) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes()) * time.Minute
}

// Store persists task state and run history.
//
// [repositories.TaskRepository] implements it.
type Store interface {
	EnsureState(ctx context.Context, name string, enabled bool) error
	ReadState(ctx context.Context, name string) (*models.TaskState, error)
	WriteState(ctx context.Context, name string, lastRunAt time.Time, status models.RunStatus, nextRunAt time.Time) error
	SeedNextRun(ctx context.Context, name string, next time.Time) (bool, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
	InsertRunStart(ctx context.Context, name string, startedAt time.Time) (int64, error)
	SealRun(ctx context.Context, id int64, completedAt time.Time, status models.RunStatus, errMsg string, tracksProcessed int) error
	History(ctx context.Context, name string, limit int) ([]*models.TaskRun, error)
	RecentRuns(ctx context.Context, limit int) ([]*models.TaskRun, error)
}

var _ Store = (*repositories.TaskRepository)(nil)

// Registry holds task definitions and runs them with at most one execution per task in flight.
//
// The background [Loop] and manual callers share one Registry, so the single-flight guarantee
// covers both.
type Registry struct {
	store  Store
	logger *log.Logger
	now    func() time.Time

	defsMu sync.RWMutex
	defs   map[string]Definition

	mu      sync.Mutex
	running map[string]*models.TaskRun
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store Store, logger *log.Logger) *Registry {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Registry{
		store:   store,
		logger:  shared.WithLogger(logger, "component", "scheduler"),
		now:     time.Now,
		defs:    map[string]Definition{},
		running: map[string]*models.TaskRun{},
	}
}

// Register adds or replaces a definition and creates its state row if missing.
// Dependencies are not validated; an unregistered dependency is never met.
func (r *Registry) Register(ctx context.Context, def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: task name", shared.ErrMissingArgument)
	}
	if def.Func == nil {
		return fmt.Errorf("%w: task %s has no function", shared.ErrInvalidArgument, def.Name)
	}

	if err := r.store.EnsureState(ctx, def.Name, def.Enabled); err != nil {
		return err
	}

	r.defsMu.Lock()
	r.defs[def.Name] = def
	r.defsMu.Unlock()
	r.logger.Debug("task registered", "task", def.Name, "interval", def.IntervalMinutes(), "deps", def.Dependencies)
	return nil
}

// Definition looks up a registered task.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.defsMu.RLock()
	defer r.defsMu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.defsMu.RLock()
	defer r.defsMu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DependencyOrder layers the tasks so each appears after its dependencies.
//
// When a pass places nothing (a cycle or a dependency that is never registered) the remaining
// tasks are appended in name order and [shared.ErrDependencyCycle] is returned with the full order.
func (r *Registry) DependencyOrder() ([]string, error) {
	names := r.Names()
	placed := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))
	remaining := names

	for len(remaining) > 0 {
		var next []string
		var layer []string
		for _, name := range remaining {
			def, _ := r.Definition(name)
			if allPlaced(def.Dependencies, placed) {
				layer = append(layer, name)
			} else {
				next = append(next, name)
			}
		}

		if len(layer) == 0 {
			order = append(order, remaining...)
			return order, fmt.Errorf("%w: %s", shared.ErrDependencyCycle, strings.Join(remaining, ", "))
		}
		for _, name := range layer {
			placed[name] = true
		}
		order = append(order, layer...)
		remaining = next
	}
	return order, nil
}

func allPlaced(deps []string, placed map[string]bool) bool {
	for _, d := range deps {
		if !placed[d] {
			return false
		}
	}
	return true
}

// CheckDependencies reports whether every dependency of name has run at least once,
// regardless of that run's outcome, and lists the ones that have not.
func (r *Registry) CheckDependencies(ctx context.Context, name string) (bool, []string, error) {
	def, ok := r.Definition(name)
	if !ok {
		return false, nil, fmt.Errorf("%w: %s", shared.ErrUnknownTask, name)
	}

	var unmet []string
	for _, dep := range def.Dependencies {
		state, err := r.store.ReadState(ctx, dep)
		if err != nil {
			return false, nil, err
		}
		if _, registered := r.Definition(dep); !registered || state == nil || state.LastRunAt == nil {
			unmet = append(unmet, dep)
		}
	}
	return len(unmet) == 0, unmet, nil
}

// IsRunning reports whether name is in flight in this process.
func (r *Registry) IsRunning(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[name]
	return ok
}

// Running returns the names of the tasks in flight.
func (r *Registry) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.running))
	for name := range r.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ShouldRun reports whether name is due: enabled, not in flight, and past its next run time.
// A task that has never been scheduled, or whose stored next run time is unreadable, is due.
func (r *Registry) ShouldRun(ctx context.Context, name string) (bool, error) {
	def, ok := r.Definition(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", shared.ErrUnknownTask, name)
	}
	state, err := r.store.ReadState(ctx, name)
	if err != nil {
		return false, err
	}

	enabled := def.Enabled
	if state != nil {
		enabled = state.Enabled
	}
	if !enabled || r.IsRunning(name) {
		return false, nil
	}
	if state == nil || state.NextRunAt == nil || state.NextRunInvalid {
		return true, nil
	}
	return !r.now().Before(*state.NextRunAt), nil
}

// reserve claims the in-flight slot for name.
func (r *Registry) reserve(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[name]; ok {
		return false
	}
	r.running[name] = &models.TaskRun{TaskName: name, Status: models.RunRunning, StartedAt: r.now()}
	return true
}

func (r *Registry) track(run *models.TaskRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[run.TaskName] = run
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}

// RunTask executes name once and returns the sealed run.
//
// It fails with [shared.ErrUnknownTask], [shared.ErrAlreadyRunning] or
// [shared.ErrDependenciesUnmet] (unless force is set) without recording a run. A run whose
// function fails, returns a non-OK result or panics is recorded as failed and reported with
// [shared.ErrTaskFailed]. In every case next_run_at becomes completion time plus the interval
// configured at that moment.
func (r *Registry) RunTask(ctx context.Context, name string, force bool) (*models.TaskRun, error) {
	def, ok := r.Definition(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownTask, name)
	}
	if !r.reserve(name) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAlreadyRunning, name)
	}
	defer r.release(name)

	if !force {
		met, unmet, err := r.CheckDependencies(ctx, name)
		if err != nil {
			return nil, err
		}
		if !met {
			return nil, fmt.Errorf("%w: %s", shared.ErrDependenciesUnmet, strings.Join(unmet, ", "))
		}
	}

	logger := r.logger.With("task", name)
	started := r.now()
	id, err := r.store.InsertRunStart(ctx, name, started)
	if err != nil {
		return nil, err
	}
	run := &models.TaskRun{ID: id, TaskName: name, StartedAt: started, Status: models.RunRunning}
	r.track(run)
	logger.Info("task started", "run", id, "forced", force)

	result, runErr := execute(ctx, def.Func)

	completed := r.now()
	sealed := *run
	sealed.CompletedAt = &completed
	sealed.TracksProcessed = result.TracksProcessed
	switch {
	case runErr != nil:
		sealed.Status = models.RunFailed
		sealed.ErrorMessage = runErr.Error()
	case !result.OK:
		sealed.Status = models.RunFailed
		sealed.ErrorMessage = "task reported failure"
	default:
		sealed.Status = models.RunCompleted
	}

	// The run is sealed even when the caller's context ended during the task.
	storeCtx := context.WithoutCancel(ctx)
	if err := r.store.SealRun(storeCtx, id, completed, sealed.Status, sealed.ErrorMessage, sealed.TracksProcessed); err != nil {
		logger.Error("failed to seal run", "run", id, "err", err)
	}
	next := completed.Add(def.Interval())
	if err := r.store.WriteState(storeCtx, name, completed, sealed.Status, next); err != nil {
		logger.Error("failed to write task state", "err", err)
	}

	if sealed.Status == models.RunFailed {
		logger.Error("task failed", "run", id, "duration", sealed.Duration(), "err", sealed.ErrorMessage)
		return &sealed, fmt.Errorf("%w: %s", shared.ErrTaskFailed, sealed.ErrorMessage)
	}
	logger.Info("task completed", "run", id, "duration", sealed.Duration(),
		"tracks", sealed.TracksProcessed, "next", next.Format(time.RFC3339))
	return &sealed, nil
}

// execute calls fn, converting a panic into an error.
func execute(ctx context.Context, fn TaskFunc) (result Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = Result{}
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Run is [Registry.RunTask] reduced to a success flag and a message for display.
func (r *Registry) Run(ctx context.Context, name string, force bool) (bool, string) {
	run, err := r.RunTask(ctx, name, force)
	return err == nil, Message(name, run, err)
}

// Message describes the outcome of [Registry.RunTask].
func Message(name string, run *models.TaskRun, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("Task %s completed successfully", name)
	case errors.Is(err, shared.ErrUnknownTask):
		return "Unknown task: " + name
	case errors.Is(err, shared.ErrAlreadyRunning):
		return fmt.Sprintf("Task %s is already running", name)
	case errors.Is(err, shared.ErrDependenciesUnmet):
		return "Dependencies not met: " + strings.TrimPrefix(err.Error(), shared.ErrDependenciesUnmet.Error()+": ")
	case run != nil && run.ErrorMessage != "":
		return fmt.Sprintf("Task %s failed: %s", name, run.ErrorMessage)
	default:
		return fmt.Sprintf("Task %s failed: %v", name, err)
	}
}

// Outcome is the result of one task in [Registry.RunAll].
type Outcome struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// RunAll force-runs every enabled task sequentially in dependency order. A failing task does
// not stop its dependents from running.
func (r *Registry) RunAll(ctx context.Context) []Outcome {
	order, err := r.DependencyOrder()
	if err != nil {
		r.logger.Warn("running tasks in fallback order", "err", err)
	}

	outcomes := make([]Outcome, 0, len(order))
	for _, name := range order {
		enabled, err := r.enabled(ctx, name)
		if err != nil {
			outcomes = append(outcomes, Outcome{Name: name, Message: err.Error()})
			continue
		}
		if !enabled {
			r.logger.Debug("skipping disabled task", "task", name)
			continue
		}
		ok, msg := r.Run(ctx, name, true)
		outcomes = append(outcomes, Outcome{Name: name, OK: ok, Message: msg})
	}
	return outcomes
}

func (r *Registry) enabled(ctx context.Context, name string) (bool, error) {
	def, _ := r.Definition(name)
	state, err := r.store.ReadState(ctx, name)
	if err != nil {
		return false, err
	}
	if state == nil {
		return def.Enabled, nil
	}
	return state.Enabled, nil
}

// SeedNextRuns gives every task without a next run time one interval from now.
func (r *Registry) SeedNextRuns(ctx context.Context) error {
	now := r.now()
	for _, name := range r.Names() {
		def, _ := r.Definition(name)
		seeded, err := r.store.SeedNextRun(ctx, name, now.Add(def.Interval()))
		if err != nil {
			return err
		}
		if seeded {
			r.logger.Debug("seeded next run", "task", name, "interval", def.IntervalMinutes())
		}
	}
	return nil
}

// SetEnabled enables or disables a registered task.
func (r *Registry) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if _, ok := r.Definition(name); !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownTask, name)
	}
	return r.store.SetEnabled(ctx, name, enabled)
}

// History returns the most recent runs of name, newest first.
func (r *Registry) History(ctx context.Context, name string, limit int) ([]*models.TaskRun, error) {
	if _, ok := r.Definition(name); !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownTask, name)
	}
	return r.store.History(ctx, name, limit)
}

// RecentRuns returns the most recent runs across all tasks, newest first.
func (r *Registry) RecentRuns(ctx context.Context, limit int) ([]*models.TaskRun, error) {
	return r.store.RecentRuns(ctx, limit)
}

// TaskInfo is a registered task joined with its persisted state.
type TaskInfo struct {
	Name            string           `json:"name"`
	DisplayName     string           `json:"display_name"`
	Description     string           `json:"description"`
	IntervalMinutes int              `json:"interval_minutes"`
	Dependencies    []string         `json:"dependencies"`
	Enabled         bool             `json:"enabled"`
	Running         bool             `json:"running"`
	LastRunAt       *time.Time       `json:"last_run_at,omitempty"`
	LastStatus      models.RunStatus `json:"last_status,omitempty"`
	NextRunAt       *time.Time       `json:"next_run_at,omitempty"`
}

// States lists every registered task in dependency order with its state.
func (r *Registry) States(ctx context.Context) ([]TaskInfo, error) {
	order, _ := r.DependencyOrder()
	infos := make([]TaskInfo, 0, len(order))
	for _, name := range order {
		def, _ := r.Definition(name)
		state, err := r.store.ReadState(ctx, name)
		if err != nil {
			return nil, err
		}
		info := TaskInfo{
			Name:            def.Name,
			DisplayName:     def.DisplayName,
			Description:     def.Description,
			IntervalMinutes: def.IntervalMinutes(),
			Dependencies:    def.Dependencies,
			Enabled:         def.Enabled,
			Running:         r.IsRunning(name),
		}
		if state != nil {
			info.Enabled = state.Enabled
			info.LastRunAt = state.LastRunAt
			info.LastStatus = state.LastStatus
			info.NextRunAt = state.NextRunAt
		}
		infos = append(infos, info)
	}
	return infos, nil
}
