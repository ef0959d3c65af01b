package fetchr

import "github.com/adamwoolhether/fetchr/transfer"

// Types re-exported from [transfer].

type (
	// Event is a ContentLength or a Data.
	Event = transfer.Event

	// ContentLength announces the total size of the resource.
	ContentLength = transfer.ContentLength

	// Data carries one chunk; its bytes are only valid during the callback.
	Data = transfer.Data

	// Callback receives the events of a download.
	Callback = transfer.Callback

	// StatusError reports a status other than 200 or 404.
	StatusError = transfer.StatusError

	// TimeoutError reports a connect timeout or a stalled transfer.
	TimeoutError = transfer.TimeoutError

	// IOError tags a disk or stream failure with its operation.
	IOError = transfer.IOError
)

// Sentinel errors re-exported from [transfer].

var (
	// ErrBackendUnavailable is wrapped by the error of a backend left out of the build.
	ErrBackendUnavailable = transfer.ErrBackendUnavailable

	// ErrNoWorkingBackends indicates every backend was unavailable.
	ErrNoWorkingBackends = transfer.ErrNoWorkingBackends

	// ErrNotFound indicates a missing file, an HTTP 404 or a missing object.
	ErrNotFound = transfer.ErrNotFound

	// ErrUnexpectedStatusCode is wrapped by [StatusError].
	ErrUnexpectedStatusCode = transfer.ErrUnexpectedStatusCode

	// ErrTimeout is wrapped by [TimeoutError].
	ErrTimeout = transfer.ErrTimeout

	// ErrUnsupportedScheme indicates a URL scheme no backend can fetch.
	ErrUnsupportedScheme = transfer.ErrUnsupportedScheme
)

// ChunkSize is the largest Data event a download emits.
const ChunkSize = transfer.ChunkSize
