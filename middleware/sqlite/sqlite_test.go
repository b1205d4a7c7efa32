package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/fcg/usuarios/core"
)

func TestNewConn(t *testing.T) {
	rail := core.EmptyRail()
	tx, err := NewConn(rail, filepath.Join(t.TempDir(), "test.db"), true)
	if err != nil {
		t.Fatal(err)
	}
	db, err := tx.DB()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err = db.Ping(); err != nil {
		t.Fatal(err)
	}

	var mode string
	if err := tx.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal, got %v", mode)
	}
}
