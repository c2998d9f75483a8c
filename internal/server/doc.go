// Package server serves the daemon's status API.
//
// # Routes
//
//	GET  /healthz                  liveness and the tasks in flight
//	GET  /v1/tasks                 every task with its state
//	GET  /v1/tasks/{name}          one task
//	POST /v1/tasks/{name}/run      start a run (?force=true skips dependencies, ?wait=true blocks)
//	GET  /v1/tasks/{name}/runs     run history of one task (?limit=)
//	GET  /v1/runs                  recent runs of all tasks (?limit=)
//	GET  /v1/tracks                tracks, optionally filtered with ?status=
//	GET  /v1/stats                 track counts by download status
//
// A run request answers 202 once the run is started, 404 for an unknown task, 409 while the task
// is in flight and 412 when dependencies have not run yet.
//
// # Authentication
//
// When an auth token is configured every /v1 route requires it, either as
// "Authorization: Bearer <token>" or as a token query parameter.
package server
