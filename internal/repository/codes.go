package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// nextCode allocates the next sequential code for a prefix scope, e.g.
// ENR-202501 -> ENR-2025010001. The suffix is the max existing sequence in
// the scope plus one; concurrent allocations are resolved by the table's
// unique constraint and a retry at the call site.
func nextCode(ctx context.Context, q sqlx.QueryerContext, table, column, prefix string, width int) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE $1 ORDER BY %s DESC LIMIT 1", column, table, column, column)

	var last string
	err := sqlx.GetContext(ctx, q, &last, query, prefix+"%")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find max code for %s: %w", prefix, err)
	}

	seq := 1
	if last != "" {
		raw := strings.TrimPrefix(last, prefix)
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			seq = n + 1
		}
	}

	return fmt.Sprintf("%s%0*d", prefix, width, seq), nil
}

// isUniqueViolation reports whether the error is a postgres duplicate-key
// failure, the signal to re-allocate a code and retry.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
