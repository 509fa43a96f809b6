package pipeline

import "errors"

// Error taxonomy for the ingestion pipeline. Callers match with errors.Is;
// the concrete cause is carried in the wrapping message.
var (
	// ErrSourceUnavailable covers network failures, timeouts, non-2xx
	// responses and unparseable payloads from the external feed. Retried
	// with backoff by the scheduler; scoped to the current cycle.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrIdentityConflict means two external ids claimed the same resolved
	// player identity. The offending record is skipped; the cycle continues.
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrArchiveWriteFailure means the storage layer rejected a snapshot
	// write. Aborts the current cycle's archiving phase; prior data stays
	// intact.
	ErrArchiveWriteFailure = errors.New("archive write failure")

	// ErrSeasonClosed rejects snapshot writes into a season whose archive
	// entries have been frozen.
	ErrSeasonClosed = errors.New("season closed")
)
