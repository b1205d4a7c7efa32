package user

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/event"
	"github.com/fcg/usuarios/middleware/sqlite"
	"gorm.io/gorm"
)

type recordingBus struct {
	mu        sync.Mutex
	published []event.Event
	rails     []core.Rail
	fail      bool
}

func (b *recordingBus) Publish(rail core.Rail, evt event.Event, routingKey ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker unreachable")
	}
	b.published = append(b.published, evt)
	b.rails = append(b.rails, rail)
	return nil
}

func (b *recordingBus) events() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.Event(nil), b.published...)
}

func newTestDB(t *testing.T) *gorm.DB {
	rail := core.EmptyRail()
	db, err := sqlite.NewConn(rail, filepath.Join(t.TempDir(), "users.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sdb, err := db.DB(); err == nil {
			sdb.Close()
		}
	})
	if err := Migrate(rail, db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestService(t *testing.T) (*UserService, *recordingBus) {
	bus := &recordingBus{}
	return NewUserService(newTestDB(t), bus), bus
}
