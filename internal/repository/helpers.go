package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("repository: duplicate record")
	// ErrStaleState is returned when a conditional update matched no row
	// because the record changed underneath the caller.
	ErrStaleState = errors.New("repository: record state changed")
)

const uniqueViolation = "23505"

// mapUniqueViolation turns a Postgres unique violation into ErrDuplicate and
// wraps everything else with op.
func mapUniqueViolation(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pageWindow(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}

func sortOrder(raw string) string {
	order := strings.ToUpper(raw)
	if order != "ASC" && order != "DESC" {
		return "DESC"
	}
	return order
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"
}
