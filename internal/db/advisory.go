package db

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ReservationKey names the (locker, date) pair guarded while reserving slots.
func ReservationKey(lockerID string, date time.Time) string {
	return "reservation:" + lockerID + ":" + date.Format("2006-01-02")
}

// LockKeys takes transaction-scoped advisory locks on keys in sorted order so
// concurrent writers over overlapping key sets cannot deadlock. Duplicates
// are collapsed.
func LockKeys(ctx context.Context, q Querier, keys []string) error {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", k); err != nil {
			return fmt.Errorf("advisory lock %s failed: %w", k, err)
		}
	}
	return nil
}
