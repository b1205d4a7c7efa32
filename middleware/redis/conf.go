package redis

import "github.com/fcg/usuarios/core"

// config-section: Redis Configuration
const (

	// config-prop: enable Redis client | false
	PropRedisEnabled = "redis.enabled"

	// config-prop: Redis server host | localhost
	PropRedisAddress = "redis.address"

	// config-prop: Redis server port | 6379
	PropRedisPort = "redis.port"

	// config-prop: password
	PropRedisPassword = "redis.password"

	// config-prop: database | 0
	PropRedisDatabase = "redis.database"
)

// config-default-start
func init() {
	core.SetDefProp(PropRedisEnabled, false)
	core.SetDefProp(PropRedisAddress, "localhost")
	core.SetDefProp(PropRedisPort, 6379)
	core.SetDefProp(PropRedisPassword, "")
	core.SetDefProp(PropRedisDatabase, 0)
}

// config-default-end
