package sqlite

import (
	"fmt"
	"sync"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/middleware/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	mu sync.RWMutex
	db *gorm.DB
)

func init() {
	core.RegisterBootstrapCallback(core.ComponentBootstrap{
		Name:      "Bootstrap SQLite",
		Bootstrap: sqliteBootstrap,
		Condition: sqliteBootstrapCondition,
		Order:     core.BootstrapOrderL1,
	})
}

// Get SQLite client.
func GetDB() *gorm.DB {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		panic("SQLite Connection hasn't been initialized yet")
	}
	if core.IsDebugLevel() {
		return db.Debug()
	}
	return db
}

// Check whether SQLite client is initialized
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return db != nil
}

// Create new SQLite connection.
func NewConn(rail core.Rail, path string, wal bool) (*gorm.DB, error) {
	rail.Infof("Connecting to SQLite database '%s', enable WAL: %v", path, wal)

	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite, %w", err)
	}

	sqlDb, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to connect SQLite, %w", err)
	}

	// make sure the handle is actually connected
	if err := sqlDb.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite, %w", err)
	}
	rail.Infof("SQLite connected: '%s'", path)

	// https://www.sqlite.org/pragma.html#pragma_journal_mode
	if wal {
		var mode string
		if err := conn.Raw("PRAGMA journal_mode=WAL").Scan(&mode).Error; err != nil {
			return conn, fmt.Errorf("failed to enable WAL mode, %w", err)
		}
		rail.Debugf("Enabled SQLite WAL mode, result: %v", mode)
	}
	return conn, nil
}

func InitFromProp(rail core.Rail) error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		return nil
	}
	conn, err := NewConn(rail, core.GetPropStr(PropSqliteFile), core.GetPropBool(PropSqliteWalEnabled))
	if err != nil {
		return err
	}
	db = conn
	return nil
}

func sqliteBootstrap(rail core.Rail) error {
	if err := InitFromProp(rail); err != nil {
		return core.WrapErrf(err, "failed to initialize SQLite")
	}
	core.AddShutdownHook(func() {
		if sqlDb, err := GetDB().DB(); err == nil {
			_ = sqlDb.Close()
		}
	})
	return nil
}

// SQLite is only used when MySQL is disabled.
func sqliteBootstrapCondition(rail core.Rail) (bool, error) {
	return !mysql.IsMySqlEnabled() && !core.IsBlankStr(core.GetPropStr(PropSqliteFile)), nil
}
