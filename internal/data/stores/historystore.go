package stores

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
)

const historyColumns = "id, item_id, actor_id, old_status, new_status, changed_at, period_key, automatic"

// sortColumns maps sort fields to SQL expressions. NULL actors sort as the
// empty string so both dialects agree.
var sortColumns = map[history.SortField]string{
	history.SortChangedAt: "changed_at",
	history.SortItemID:    "item_id",
	history.SortActorID:   "COALESCE(actor_id, '')",
}

// HistoryStore implements history.Store using SQL. It only ever inserts.
type HistoryStore struct {
	db *db.DB
}

var _ history.Store = (*HistoryStore)(nil)

// NewHistoryStore creates a new SQL-backed history store.
func NewHistoryStore(db *db.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Append inserts rec. A second automatic reset for the same item and period
// violates the partial unique index and returns history.ErrConflict.
func (s *HistoryStore) Append(ctx context.Context, rec history.Record) error {
	return appendRecord(ctx, s.db.Conn(), s.db.Rebind, rec)
}

// Query returns the records matching filter.
func (s *HistoryStore) Query(ctx context.Context, filter history.Filter) ([]history.Record, error) {
	query, args := buildHistoryQuery(filter)

	rows, err := s.db.Conn().QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, wrapErr("query history", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]history.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query history", err)
	}
	return records, nil
}

// LatestForPeriod returns the newest record for the item in the period.
func (s *HistoryStore) LatestForPeriod(ctx context.Context, itemID string, key period.Key) (history.Record, error) {
	records, err := s.Query(ctx, history.Filter{
		ItemIDs:   []string{itemID},
		PeriodKey: key,
		Limit:     1,
		Sort:      history.DefaultSort,
	})
	if err != nil {
		return history.Record{}, err
	}
	if len(records) == 0 {
		return history.Record{}, history.ErrNotFound
	}
	return records[0], nil
}

func buildHistoryQuery(f history.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)

	if len(f.ItemIDs) > 0 {
		where = append(where, "item_id IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(f.ItemIDs)), ", ")+")")
		for _, id := range f.ItemIDs {
			args = append(args, id)
		}
	}
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.PeriodKey != "" {
		where = append(where, "period_key = ?")
		args = append(args, string(f.PeriodKey))
	}
	switch f.Origin {
	case history.OriginAutomatic:
		where = append(where, "automatic = 1")
	case history.OriginManual:
		where = append(where, "automatic = 0")
	}
	if !f.Since.IsZero() {
		where = append(where, "changed_at >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		where = append(where, "changed_at < ?")
		args = append(args, f.Until.UnixNano())
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(historyColumns)
	b.WriteString(" FROM status_history")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	col, ok := sortColumns[f.Sort.Field]
	if !ok {
		col = sortColumns[history.SortChangedAt]
	}
	dir := "ASC"
	if f.Sort.Desc {
		dir = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s, id %s", col, dir, dir)

	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	return b.String(), args
}

func appendRecord(ctx context.Context, q querier, rebind func(string) string, rec history.Record) error {
	automatic := 0
	if rec.Automatic {
		automatic = 1
	}

	var oldStatus sql.NullString
	if rec.OldStatus != nil {
		oldStatus = sql.NullString{String: string(*rec.OldStatus), Valid: true}
	}

	_, err := q.ExecContext(ctx,
		rebind("INSERT INTO status_history ("+historyColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		rec.ID,
		rec.ItemID,
		toNullString(rec.ActorID),
		oldStatus,
		string(rec.NewStatus),
		rec.ChangedAt.UnixNano(),
		string(rec.PeriodKey),
		automatic,
	)
	if err != nil {
		if rec.Automatic && IsUniqueViolation(err) {
			return history.ErrConflict
		}
		return wrapErr("append history", err)
	}
	return nil
}

func scanRecord(row rowScanner) (history.Record, error) {
	var (
		rec                  history.Record
		actorID, oldStatus   sql.NullString
		newStatus, periodKey string
		changedAt            int64
		automatic            int
	)
	if err := row.Scan(&rec.ID, &rec.ItemID, &actorID, &oldStatus, &newStatus, &changedAt, &periodKey, &automatic); err != nil {
		return history.Record{}, err
	}

	rec.ActorID = fromNullString(actorID)
	if oldStatus.Valid {
		s := workitem.Status(oldStatus.String)
		rec.OldStatus = &s
	}
	rec.NewStatus = workitem.Status(newStatus)
	rec.ChangedAt = fromUnixNano(changedAt)
	rec.PeriodKey = period.Key(periodKey)
	rec.Automatic = automatic == 1
	return rec, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
