package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Document number prefixes.
const (
	PrefixOrder    = "ORD"
	PrefixDispatch = "DSP"
	PrefixReceipt  = "RCV"
	PrefixIssue    = "ISS"
)

// DocumentSequencer mints gapless document numbers per (prefix, camp, month).
// Next must be called inside the transaction that persists the document: the
// upsert takes a row lock on the counter that is held until commit, so two
// concurrent callers serialize, and a rollback returns the number unused.
type DocumentSequencer interface {
	Next(ctx context.Context, tx pgx.Tx, prefix, campCode string) (string, error)
}

type documentSequencer struct {
	now func() time.Time
}

func NewDocumentSequencer() DocumentSequencer {
	return &documentSequencer{now: time.Now}
}

func (s *documentSequencer) Next(ctx context.Context, tx pgx.Tx, prefix, campCode string) (string, error) {
	t := s.now()
	year, month := t.Year(), int(t.Month())

	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO number_sequences (prefix, camp_code, current_year, current_month, last_number)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (prefix, camp_code, current_year, current_month)
		DO UPDATE SET last_number = number_sequences.last_number + 1
		RETURNING last_number`,
		prefix, campCode, year, month,
	).Scan(&n)
	if err != nil {
		return "", NewPersistenceError("allocate document number", err)
	}

	return fmt.Sprintf("%s-%s-%02d%02d-%04d", prefix, campCode, year%100, month, n), nil
}
