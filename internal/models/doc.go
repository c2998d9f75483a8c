// Package models defines the domain entities shared by the spotiseek pipeline.
//
// The package contains two groups of types:
//
// 1. Library entities persisted in the track store
//   - [Track] : a playlist entry and its download lifecycle
//   - [Playlist] : a scraped playlist and its generated m3u8 file
//   - [DownloadStatus] : the closed set of download states, plus an unknown fallback
//
// 2. Scheduler records
//   - [TaskRun] : one append-only execution record
//   - [TaskState] : the per-task scheduling cursor
//   - [RunStatus] : outcome of a task run
package models
