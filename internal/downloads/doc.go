// Package downloads drives tracks from "pending" to a file in the library.
//
// The [Orchestrator] owns the per-track state machine stored in the tracks table:
//
//	pending -> searching -> {not_found | no_suitable_file | failed | downloading}
//	downloading -> {completed | failed | queued | <remote state>}
//	completed -> redownload_pending -> downloading (upgrade) ...
//
// Two search flows exist. [Orchestrator.DownloadTrack] searches, polls and enqueues in one
// call. The scheduled pipeline splits the same work across [Orchestrator.InitiateSearches]
// and [Orchestrator.ProcessPendingSearches] so no task blocks on a slow search.
// [Orchestrator.SyncDownloadStatus] maps slskd transfer states back onto tracks and imports
// finished files.
//
// Network failures never escape per-track processing; they become a "failed" status so one
// bad track does not stop a batch.
package downloads
