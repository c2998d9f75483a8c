// Package scheduler runs the pipeline's named tasks on intervals and on demand.
//
// A [Registry] holds task [Definition]s, persists per-task state and run history through a
// [Store], and guarantees that a task name is executing at most once at a time in the process.
// Manual runs ([Registry.RunTask], [Registry.RunAll]) and the background [Loop] both go
// through the registry.
//
// Scheduling rules:
//   - next_run_at is recomputed after every run as completion time plus the interval in effect
//     at that moment, so interval overrides apply from the next cycle.
//   - A dependency is met once it has run at all; its last outcome is not considered.
//   - [Registry.RunAll] forces every enabled task in dependency order.
package scheduler
