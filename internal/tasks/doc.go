// Package tasks defines the download pipeline as eight named scheduler tasks.
//
// # Tasks
//
//	scrape_playlists ──► initiate_searches
//	poll_search_results
//	sync_download_status ──► mark_quality_upgrades ──► process_upgrades
//	                     ├─► export_library
//	                     └─► remux_existing_files
//
// [Register] adds them to a [scheduler.Registry] with their default intervals. Each interval
// can be overridden in minutes with TASK_<NAME>_INTERVAL.
//
// Tasks that talk to slskd wait for it to log in to the network before doing any work and
// fail the run when it does not come up in time.
//
// # Progress Reporting
//
// [Pipeline.Progress] receives [ProgressUpdate]s through non-blocking sends, so a slow or
// absent reader never stalls a task.
//
// # Scraping
//
// [Pipeline.ScrapeURLs] fetches playlists on a small worker pool paced by a
// [golang.org/x/time/rate] limiter and writes them to the store from a single goroutine.
package tasks
