// Package fetchr downloads a URL through a prioritized list of transport
// backends and reports the transfer as a stream of events.
//
// A Downloader tries the backends in the order returned by [Backends].
// A backend that is not part of the build reports itself unavailable and
// the next one is tried; any other failure ends the download. Events are
// delivered in order: at most one [ContentLength], sent before any
// [Data], followed by Data events of at most [ChunkSize] bytes.
//
// [Downloader.DownloadToPath] stores the resource in a file that only
// appears once the transfer succeeded.
//
// Backends can be left out of a build with the nonative, nostdtls and
// noutls build tags.
package fetchr
