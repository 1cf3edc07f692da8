// Package engine implements the restore manager (C9): request intake,
// deterministic ID derivation, worker dispatch, and the progress registry
// that lets SSE subscribers and the download coordinator observe an
// in-flight restore.
package engine

import "errors"

var (
	// ErrNotFound is returned by Fetch when no metadata and no in-flight
	// worker exist for a restore ID.
	ErrNotFound = errors.New("engine: restore not found")

	// ErrGone is returned by Fetch when placeholder metadata exists but no
	// worker is tracking it — the worker crashed and the next sweep will
	// clean up.
	ErrGone = errors.New("engine: restore worker is gone")
)
