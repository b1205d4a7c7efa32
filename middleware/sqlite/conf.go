package sqlite

import "github.com/fcg/usuarios/core"

// config-section: SQLite Configuration
const (

	// config-prop: path to SQLite database file | usuarios.db
	PropSqliteFile = "sqlite.file"

	// config-prop: enable WAL mode | true
	PropSqliteWalEnabled = "sqlite.wal.enabled"
)

// config-default-start
func init() {
	core.SetDefProp(PropSqliteFile, "usuarios.db")
	core.SetDefProp(PropSqliteWalEnabled, true)
}

// config-default-end
