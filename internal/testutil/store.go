package testutil

import (
	"context"
	"iotd/internal/models"
	"iotd/internal/repository"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenStore opens a migrated in-memory SQLite store private to the test.
func OpenStore(t *testing.T) repository.Store {
	t.Helper()
	dsn := "file:" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := repository.New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store
}

func RegisterDevice(t *testing.T, store repository.Store, id int64, name string) models.Device {
	t.Helper()
	d := models.Device{ID: id, Name: name, Type: "sensor", Status: "active"}
	if err := store.Devices().Create(context.Background(), &d); err != nil {
		t.Fatalf("create device %d: %v", id, err)
	}
	return d
}

// Clock is a settable time source for code that takes a now func.
type Clock struct {
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
