package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSlotTaken marks a storage-level slot-uniqueness rejection. Callers treat
// it as an expected, recoverable outcome: the other writer won the race.
var ErrSlotTaken = errors.New("slot already taken")

// ErrDuplicatePending marks an attempt to open a second pending handoff
// ticket for the same conversation.
var ErrDuplicatePending = errors.New("pending ticket exists")

// isUniqueViolation reports whether err is a Postgres unique-constraint
// rejection (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
