package core

// config-section: Common Configuration
const (

	// config-prop: name of the application | usuarios
	PropAppName = "app.name"

	// config-prop: whether production mode is turned on | true
	PropProdMode = "mode.production"

	// config-prop: path of the config file, can also be specified using cli arg `configFile=...` | conf.yml
	PropConfigFile = "configFile"
)

// config-section: Logging Configuration
const (

	// config-prop: log level | info
	PropLoggingLevel = "logging.level"

	// config-prop: path to rolling log file
	PropLoggingRollingFile = "logging.rolling.file"

	// config-prop: max age of log files in days | 0
	PropLoggingRollingFileMaxAge = "logging.file.max-age"

	// config-prop: max size of each log file in mb | 50
	PropLoggingRollingFileMaxSize = "logging.file.max-size"

	// config-prop: max number of backup log files | 10
	PropLoggingRollingFileMaxBackups = "logging.file.max-backups"
)

// config-section: Web Server Configuration
const (

	// config-prop: enable http server | true
	PropServerEnabled = "server.enabled"

	// config-prop: http server host | 0.0.0.0
	PropServerHost = "server.host"

	// config-prop: http server port | 8080
	PropServerPort = "server.port"

	// config-prop: health check url | /health
	PropHealthCheckUrl = "server.health-check-url"

	// config-prop: prometheus metrics url | /metrics
	PropMetricsRoute = "metrics.route"

	// config-prop: time wait (in second) before the server shuts down | 30
	PropServerGracefulShutdownTimeSec = "server.gracefulShutdownTimeSec"
)

// config-default-start
func init() {
	SetDefProp(PropAppName, "usuarios")
	SetDefProp(PropProdMode, true)
	SetDefProp(PropConfigFile, "conf.yml")

	SetDefProp(PropLoggingLevel, "info")
	SetDefProp(PropLoggingRollingFileMaxAge, 0)
	SetDefProp(PropLoggingRollingFileMaxSize, 50)
	SetDefProp(PropLoggingRollingFileMaxBackups, 10)

	SetDefProp(PropServerEnabled, true)
	SetDefProp(PropServerHost, "0.0.0.0")
	SetDefProp(PropServerPort, 8080)
	SetDefProp(PropHealthCheckUrl, "/health")
	SetDefProp(PropMetricsRoute, "/metrics")
	SetDefProp(PropServerGracefulShutdownTimeSec, 30)
}

// config-default-end
