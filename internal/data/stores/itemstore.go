package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
	"github.com/colonyops/cadence/pkg/clock"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const itemColumns = "id, name, assignee_id, periodicity, active_months, status, created_at, updated_at"

// ItemStore implements workitem.Store and workitem.PointerStore using SQL.
type ItemStore struct {
	db    *db.DB
	clock clock.Clock
}

var (
	_ workitem.Store        = (*ItemStore)(nil)
	_ workitem.PointerStore = (*ItemStore)(nil)
)

// NewItemStore creates a new SQL-backed item store. clk stamps pointer
// updates; nil reads the system clock.
func NewItemStore(db *db.DB, clk clock.Clock) *ItemStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ItemStore{db: db, clock: clk}
}

// List returns items matching the filter, newest first.
func (s *ItemStore) List(ctx context.Context, filter workitem.ListFilter) ([]workitem.Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.AssigneeID != "" {
		where = append(where, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.Periodicity != "" {
		where = append(where, "periodicity = ?")
		args = append(args, string(filter.Periodicity))
	}

	query := "SELECT " + itemColumns + " FROM work_items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := s.db.Conn().QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, wrapErr("list items", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]workitem.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list items", err)
	}
	return items, nil
}

// ListForActor returns the items assigned to actorID.
func (s *ItemStore) ListForActor(ctx context.Context, actorID string) ([]workitem.Item, error) {
	return s.List(ctx, workitem.ListFilter{AssigneeID: actorID})
}

// Get returns a single item by ID.
func (s *ItemStore) Get(ctx context.Context, id string) (workitem.Item, error) {
	row := s.db.Conn().QueryRowContext(ctx, s.db.Rebind("SELECT "+itemColumns+" FROM work_items WHERE id = ?"), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workitem.Item{}, workitem.ErrNotFound
	}
	if err != nil {
		return workitem.Item{}, wrapErr("get item", err)
	}
	return item, nil
}

// Create inserts a new item, returning workitem.ErrDuplicate when the ID is
// taken.
func (s *ItemStore) Create(ctx context.Context, item workitem.Item) error {
	_, err := s.db.Conn().ExecContext(ctx, s.db.Rebind(`
		INSERT INTO work_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID,
		item.Name,
		item.AssigneeID,
		string(item.Periodicity),
		encodeMonths(item.ActiveMonths),
		string(item.Status),
		item.CreatedAt.UnixNano(),
		item.UpdatedAt.UnixNano(),
	)
	if IsUniqueViolation(err) {
		return workitem.ErrDuplicate
	}
	return wrapErr("create item", err)
}

// Save inserts the item or replaces every column of an existing one.
func (s *ItemStore) Save(ctx context.Context, item workitem.Item) error {
	_, err := s.db.Conn().ExecContext(ctx, s.db.Rebind(`
		INSERT INTO work_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			assignee_id = excluded.assignee_id,
			periodicity = excluded.periodicity,
			active_months = excluded.active_months,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`),
		item.ID,
		item.Name,
		item.AssigneeID,
		string(item.Periodicity),
		encodeMonths(item.ActiveMonths),
		string(item.Status),
		item.CreatedAt.UnixNano(),
		item.UpdatedAt.UnixNano(),
	)
	return wrapErr("save item", err)
}

// UpdateStatus changes only the status and updated_at of an item.
func (s *ItemStore) UpdateStatus(ctx context.Context, id string, status workitem.Status, at time.Time) error {
	return updateStatus(ctx, s.db.Conn(), s.db.Rebind, id, status, at)
}

// Pointer returns the item's period pointer, Unset if none was recorded.
func (s *ItemStore) Pointer(ctx context.Context, itemID string) (workitem.Pointer, error) {
	var key string
	err := s.db.Conn().QueryRowContext(ctx,
		s.db.Rebind("SELECT period_key FROM period_pointers WHERE item_id = ?"), itemID,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return workitem.Unset(), nil
	}
	if err != nil {
		return workitem.Pointer{}, wrapErr("read pointer", err)
	}
	return workitem.Recorded(period.Key(key)), nil
}

// SwapPointer sets the pointer to next only if it currently equals prev.
func (s *ItemStore) SwapPointer(ctx context.Context, itemID string, prev workitem.Pointer, next period.Key) error {
	return swapPointer(ctx, s.db.Conn(), s.db.Rebind, itemID, prev, next, s.clock.Now())
}

func updateStatus(ctx context.Context, q querier, rebind func(string) string, id string, status workitem.Status, at time.Time) error {
	res, err := q.ExecContext(ctx,
		rebind("UPDATE work_items SET status = ?, updated_at = ? WHERE id = ?"),
		string(status), at.UnixNano(), id,
	)
	if err != nil {
		return wrapErr("update item status", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("update item status", err)
	}
	if n == 0 {
		return workitem.ErrNotFound
	}
	return nil
}

// swapPointer is a compare-and-swap on period_pointers. An Unset prev means
// the row must not exist yet.
func swapPointer(ctx context.Context, q querier, rebind func(string) string, itemID string, prev workitem.Pointer, next period.Key, at time.Time) error {
	var (
		res sql.Result
		err error
	)
	if key, ok := prev.Key(); ok {
		res, err = q.ExecContext(ctx,
			rebind("UPDATE period_pointers SET period_key = ?, updated_at = ? WHERE item_id = ? AND period_key = ?"),
			string(next), at.UnixNano(), itemID, string(key),
		)
	} else {
		res, err = q.ExecContext(ctx,
			rebind("INSERT INTO period_pointers (item_id, period_key, updated_at) VALUES (?, ?, ?) ON CONFLICT (item_id) DO NOTHING"),
			itemID, string(next), at.UnixNano(),
		)
	}
	if err != nil {
		return wrapErr("swap pointer", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("swap pointer", err)
	}
	if n == 0 {
		return workitem.ErrStalePointer
	}
	return nil
}

func scanItem(row rowScanner) (workitem.Item, error) {
	var (
		item                 workitem.Item
		periodicity, status  string
		months               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&item.ID, &item.Name, &item.AssigneeID, &periodicity, &months, &status, &createdAt, &updatedAt)
	if err != nil {
		return workitem.Item{}, err
	}

	item.ActiveMonths, err = decodeMonths(months)
	if err != nil {
		return workitem.Item{}, fmt.Errorf("item %s: %w", item.ID, err)
	}
	item.Periodicity = period.Periodicity(periodicity)
	item.Status = workitem.Status(status)
	item.CreatedAt = fromUnixNano(createdAt)
	item.UpdatedAt = fromUnixNano(updatedAt)
	return item, nil
}

// encodeMonths stores active months as "1,4,7,10".
func encodeMonths(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}

func decodeMonths(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}

	parts := strings.Split(s, ",")
	months := make([]int, 0, len(parts))
	for _, p := range parts {
		m, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid active month %q: %w", p, err)
		}
		months = append(months, m)
	}
	return months, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
