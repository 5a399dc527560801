package postgres

import (
	"strings"
	"time"

	"github.com/fastygo/taskboard/domain"
)

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// storedDueDate reads a due date back as the UTC calendar day it was written
// as; pgx hands timestamptz values over in time.Local.
func storedDueDate(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}
	utc := due.UTC()
	return domain.NormalizeDueDate(&utc)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
