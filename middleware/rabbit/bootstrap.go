package rabbit

import (
	"sync"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/middleware/redis"
)

var (
	defaultBus   *RabbitBus
	defaultBusMu sync.RWMutex
)

func init() {
	core.RegisterBootstrapCallback(core.ComponentBootstrap{
		Name:      "Bootstrap RabbitMQ Event Bus",
		Bootstrap: rabbitBootstrap,
		Condition: rabbitBootstrapCondition,
		Order:     core.BootstrapOrderL2,
	})
}

// Get the bus created on bootstrap.
//
// Panics if the bus hasn't been bootstrapped.
func GetBus() *RabbitBus {
	defaultBusMu.RLock()
	defer defaultBusMu.RUnlock()
	if defaultBus == nil {
		panic("RabbitMQ event bus hasn't been initialized yet")
	}
	return defaultBus
}

func rabbitBootstrapCondition(rail core.Rail) (bool, error) {
	return core.GetPropBool(PropRabbitMqEnabled), nil
}

func rabbitBootstrap(rail core.Rail) error {
	var opts []Option
	if core.GetPropBool(PropRabbitMqConsumerDedupEnabled) {
		if !redis.IsInitialized() {
			return core.NewErrf("consumer dedup requires redis, please set '%v' to true", redis.PropRedisEnabled)
		}
		ttl := core.GetPropDur(PropRabbitMqConsumerDedupTtlSec, time.Second)
		opts = append(opts, WithDeduplicator(NewRedisDeduplicator(redis.GetRedis(), core.GetPropStr(core.PropAppName), ttl)))
	}

	RegisterMetrics()
	b, err := NewRabbitBusFromProp(rail, opts...)
	if err != nil {
		return core.WrapErrf(err, "failed to establish connection to RabbitMQ")
	}

	defaultBusMu.Lock()
	defaultBus = b
	defaultBusMu.Unlock()

	core.AddOrderedShutdownHook(core.DefShutdownOrder+1, func() {
		if err := b.Close(); err != nil {
			core.Errorf("Failed to close RabbitMQ event bus, %v", err)
		}
	})
	core.AddHealthIndicator(core.HealthIndicator{
		Name:        "RabbitMQ Event Bus",
		CheckHealth: func(rail core.Rail) bool { return b.IsOpen() },
	})

	if cron := core.GetPropStr(PropRabbitMqHealthProbeCron); !core.IsBlankStr(cron) {
		return core.ScheduleCron(core.Job{
			Name:            "RabbitMQ Health Probe",
			Cron:            cron,
			CronWithSeconds: true,
			Run:             func(rail core.Rail) error { return probe(rail, b) },
		})
	}
	return nil
}

// Reconnect if the connection was lost.
func probe(rail core.Rail, b *RabbitBus) error {
	if b.IsOpen() {
		return nil
	}
	rail.Warnf("RabbitMQ event bus is %v, reconnecting", b.State())
	return b.EnsureOpen(rail)
}
