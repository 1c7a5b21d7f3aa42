package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/cadence/internal/core/config"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
)

// ConfigCheck runs the deep config validation.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

// NewConfigCheck creates a new config check.
func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string { return "Configuration" }

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	err := c.cfg.ValidateDeep(c.path)
	if err == nil {
		result.add("config", StatusPass, c.path)
		return result
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		result.add("config", StatusFail, err.Error())
		return result
	}
	for _, fe := range fieldErrs {
		result.add(fe.Field, StatusFail, fe.Err.Error())
	}
	return result
}

// DatabaseCheck verifies the SQL store is reachable and fully migrated.
type DatabaseCheck struct {
	db *db.DB
}

// NewDatabaseCheck creates a new database check.
func NewDatabaseCheck(database *db.DB) *DatabaseCheck {
	return &DatabaseCheck{db: database}
}

func (c *DatabaseCheck) Name() string { return "Database" }

func (c *DatabaseCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if err := c.db.Conn().PingContext(ctx); err != nil {
		result.add(string(c.db.Driver()), StatusFail, err.Error())
		return result
	}
	result.add(string(c.db.Driver()), StatusPass, "reachable")

	pending, err := db.PendingMigrations(ctx, c.db)
	switch {
	case err != nil:
		result.add("migrations", StatusFail, err.Error())
	case len(pending) > 0:
		result.add("migrations", StatusFail, fmt.Sprintf("%d pending, starting at %04d_%s", len(pending), pending[0].Version, pending[0].Name))
	default:
		result.add("migrations", StatusPass, "up to date")
	}
	return result
}

// PointersCheck verifies the period pointer backend responds.
type PointersCheck struct {
	backend string
	ping    func(context.Context) error
}

// NewPointersCheck creates a new pointer backend check.
func NewPointersCheck(backend string, ping func(context.Context) error) *PointersCheck {
	return &PointersCheck{backend: backend, ping: ping}
}

func (c *PointersCheck) Name() string { return "Period pointers" }

func (c *PointersCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	if err := c.ping(ctx); err != nil {
		result.add(c.backend, StatusFail, err.Error())
		return result
	}
	result.add(c.backend, StatusPass, "reachable")
	return result
}

// ItemLister is the part of the item service the items check needs.
type ItemLister interface {
	List(ctx context.Context, filter workitem.ListFilter) ([]workitem.Item, error)
}

// ItemsCheck flags stored items with an invalid schedule and period pointers
// that no longer match their item's periodicity. A mismatched pointer makes
// the next pass reset the item.
type ItemsCheck struct {
	items    ItemLister
	pointers workitem.PointerStore
	now      func() time.Time
}

// NewItemsCheck creates a new items check.
func NewItemsCheck(items ItemLister, pointers workitem.PointerStore, now func() time.Time) *ItemsCheck {
	return &ItemsCheck{items: items, pointers: pointers, now: now}
}

func (c *ItemsCheck) Name() string { return "Items" }

func (c *ItemsCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	items, err := c.items.List(ctx, workitem.ListFilter{})
	if err != nil {
		result.add("items", StatusFail, err.Error())
		return result
	}

	issues := 0
	for _, item := range items {
		if err := item.Validate(); err != nil {
			result.add(item.ID, StatusFail, err.Error())
			issues++
			continue
		}

		ptr, err := c.pointers.Pointer(ctx, item.ID)
		if err != nil {
			result.add(item.ID, StatusFail, fmt.Sprintf("read pointer: %v", err))
			issues++
			continue
		}
		key, ok := ptr.Key()
		if !ok {
			continue
		}

		parts, err := key.Parts()
		if err != nil || parts.Periodicity != item.Periodicity {
			result.add(item.ID, StatusWarn, fmt.Sprintf("pointer %s does not match %s; next pass resets to %s",
				key, item.Periodicity, period.Label(item.CurrentPeriod(c.now()))))
			issues++
		}
	}

	if issues == 0 {
		result.add("items", StatusPass, fmt.Sprintf("%d checked", len(items)))
	}
	return result
}
