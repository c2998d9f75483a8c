// Package services wraps the HTTP APIs spotiseek depends on: the slskd download daemon and the
// streaming platforms playlists are read from.
//
// # slskd
//
// [SlskdClient] covers the parts of the slskd v0 API the download pipeline needs:
//   - POST /searches, GET /searches/{id}, GET /searches/{id}/responses
//   - POST /transfers/downloads/{username}, GET /transfers/downloads
//   - DELETE /transfers/downloads/{username}/{id}
//   - GET /server, used by [SlskdClient.WaitReady] before any task touches the network
//
// Every request carries the X-API-Key header, is bounded by the configured timeout and is paced
// by a [rate.Limiter]. Enqueue and transfer listing retry up to three times with exponential
// backoff on timeouts, connection failures and 5xx responses; 4xx responses fail immediately.
//
// # Scrapers
//
// [Scraper] is implemented by [SpotifyScraper] (client credentials via [clientcredentials]) and
// [SoundCloudScraper] (page hydration data). [Dispatcher] picks one by URL pattern.
// Artist and title strings are normalized with [CleanName] before they are stored, since they
// become slskd search text.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : non-2xx response, see [APIError]
//   - [shared.ErrUnsupportedPlatform] : playlist URL matches no scraper
//   - [shared.ErrMissingCredentials] : Spotify credentials not configured
//   - [shared.ErrPlaylistNotFound] : playlist missing or not public
package services
