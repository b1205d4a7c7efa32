package mysql

// config-section: MySQL Configuration
const (

	// config-prop: enable MySQL client, SQLite is used when it's disabled | false
	PropMySQLEnabled = "mysql.enabled"

	// config-prop: username | root
	PropMySQLUser = "mysql.user"

	// config-prop: password
	PropMySQLPassword = "mysql.password"

	// config-prop: database | usuarios
	PropMySQLSchema = "mysql.database"

	// config-prop: host | localhost
	PropMySQLHost = "mysql.host"

	// config-prop: port | 3306
	PropMySQLPort = "mysql.port"

	// config-prop: connection parameters
	PropMySQLConnParam = "mysql.connection.parameters"

	// config-prop: connection lifetime in minutes | 30
	PropMySQLConnLifetime = "mysql.connection.lifetime"

	// config-prop: max number of open connections | 10
	PropMySQLMaxOpenConns = "mysql.connection.open.max"

	// config-prop: max number of idle connections | 10
	PropMySQLMaxIdleConns = "mysql.connection.idle.max"
)
