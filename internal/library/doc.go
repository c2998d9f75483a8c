// Package library manages the files spotiseek produces around downloaded tracks.
//
// # Playlists
//
// Each scraped playlist gets an extended M3U file named by [SanitizePlaylistName]. Tracks start as
// comment lines ("# id - artist - title") and [UpdateM3U8Track] swaps the first matching comment
// for the local path once the download is imported.
//
// # iTunes XML
//
// [BuildITunesLibrary] and [WriteITunesXML] export downloaded tracks and playlists as an iTunes
// Music Library.xml property list (via howett.net/plist), so players like MusicBee can import
// the library. Container paths under /app/ are rewritten to the host base path.
//
// # Remuxing
//
// [Remuxer] shells out to ffmpeg: lossless downloads become 16-bit 44.1 kHz wav, lossy
// non-mp3 downloads become 320 kbps mp3. Sources are integrity-checked first.
//
// # Sources
//
// [ReadPlaylistSources] reads the list of playlist URLs to scrape from CSV or YAML.
package library
