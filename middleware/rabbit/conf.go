package rabbit

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/fcg/usuarios/core"
)

// config-section: RabbitMQ Configuration
const (
	// config-prop: enable the RabbitMQ event bus | true
	PropRabbitMqEnabled = "rabbitmq.enabled"

	// config-prop: RabbitMQ server host | localhost
	PropRabbitMqHost = "rabbitmq.host"

	// config-prop: RabbitMQ server port | 5672
	PropRabbitMqPort = "rabbitmq.port"

	// config-prop: username used to connect to server | guest
	PropRabbitMqUsername = "rabbitmq.username"

	// config-prop: password used to connect to server | guest
	PropRabbitMqPassword = "rabbitmq.password"

	// config-prop: virtual host | /
	PropRabbitMqVhost = "rabbitmq.vhost"

	// config-prop: extra publish attempts after the first one failed | 3
	PropRabbitMqPublisherRetryCount = "rabbitmq.publisher.retry-count"

	// config-prop: fixed delay between publish attempts in milliseconds | 1000
	PropRabbitMqPublisherRetryDelayMs = "rabbitmq.publisher.retry-delay-ms"

	// config-prop: consumer QOS | 68
	PropRabbitMqConsumerQos = "rabbitmq.consumer.qos"

	// config-prop: failed deliveries tolerated before a message is dead-lettered, -1 requeues forever | 5
	PropRabbitMqConsumerMaxRedelivery = "rabbitmq.consumer.max-redelivery"

	// config-prop: declare dead letter exchange and queues | true
	PropRabbitMqConsumerDeadLetterEnabled = "rabbitmq.consumer.dead-letter.enabled"

	// config-prop: skip deliveries whose message id was already processed, requires redis | false
	PropRabbitMqConsumerDedupEnabled = "rabbitmq.consumer.dedup.enabled"

	// config-prop: ttl of processed message markers in seconds | 86400
	PropRabbitMqConsumerDedupTtlSec = "rabbitmq.consumer.dedup.ttl-sec"

	// config-prop: reconnect attempts before giving up | 6
	PropRabbitMqReconnectMaxAttempts = "rabbitmq.reconnect.max-attempts"

	// config-prop: initial reconnect backoff in milliseconds | 500
	PropRabbitMqReconnectInitialBackoffMs = "rabbitmq.reconnect.initial-backoff-ms"

	// config-prop: max reconnect backoff in milliseconds | 10000
	PropRabbitMqReconnectMaxBackoffMs = "rabbitmq.reconnect.max-backoff-ms"

	// config-prop: cron (with seconds) of the broker health probe, empty disables it | */30 * * * * *
	PropRabbitMqHealthProbeCron = "rabbitmq.health-probe.cron"
)

// config-default-start
func init() {
	core.SetDefProp(PropRabbitMqEnabled, true)
	core.SetDefProp(PropRabbitMqHost, "localhost")
	core.SetDefProp(PropRabbitMqPort, 5672)
	core.SetDefProp(PropRabbitMqUsername, "guest")
	core.SetDefProp(PropRabbitMqPassword, "guest")
	core.SetDefProp(PropRabbitMqVhost, "/")
	core.SetDefProp(PropRabbitMqPublisherRetryCount, 3)
	core.SetDefProp(PropRabbitMqPublisherRetryDelayMs, 1000)
	core.SetDefProp(PropRabbitMqConsumerQos, DefaultQos)
	core.SetDefProp(PropRabbitMqConsumerMaxRedelivery, 5)
	core.SetDefProp(PropRabbitMqConsumerDeadLetterEnabled, true)
	core.SetDefProp(PropRabbitMqConsumerDedupEnabled, false)
	core.SetDefProp(PropRabbitMqConsumerDedupTtlSec, 86400)
	core.SetDefProp(PropRabbitMqReconnectMaxAttempts, 6)
	core.SetDefProp(PropRabbitMqReconnectInitialBackoffMs, 500)
	core.SetDefProp(PropRabbitMqReconnectMaxBackoffMs, 10000)
	core.SetDefProp(PropRabbitMqHealthProbeCron, "*/30 * * * * *")
}

// config-default-end

// Connection and behaviour settings of the event bus.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Vhost          string
	ConnectionName string

	RetryCount int           // extra publish attempts.
	RetryDelay time.Duration // fixed pause between publish attempts.

	Qos           int
	MaxRedelivery int  // failed deliveries tolerated per message, negative means unbounded.
	DeadLetter    bool // declare dead letter exchange and queues.

	ReconnectMaxAttempts    int
	ReconnectInitialBackoff time.Duration
	ReconnectMaxBackoff     time.Duration
}

// Load Config from props.
func ConfigFromProp() Config {
	return Config{
		Host:                    core.GetPropStr(PropRabbitMqHost),
		Port:                    core.GetPropInt(PropRabbitMqPort),
		Username:                core.GetPropStr(PropRabbitMqUsername),
		Password:                core.GetPropStr(PropRabbitMqPassword),
		Vhost:                   core.GetPropStr(PropRabbitMqVhost),
		ConnectionName:          core.GetPropStr(core.PropAppName),
		RetryCount:              core.GetPropInt(PropRabbitMqPublisherRetryCount),
		RetryDelay:              core.GetPropDur(PropRabbitMqPublisherRetryDelayMs, time.Millisecond),
		Qos:                     core.GetPropInt(PropRabbitMqConsumerQos),
		MaxRedelivery:           core.GetPropInt(PropRabbitMqConsumerMaxRedelivery),
		DeadLetter:              core.GetPropBool(PropRabbitMqConsumerDeadLetterEnabled),
		ReconnectMaxAttempts:    core.GetPropInt(PropRabbitMqReconnectMaxAttempts),
		ReconnectInitialBackoff: core.GetPropDur(PropRabbitMqReconnectInitialBackoffMs, time.Millisecond),
		ReconnectMaxBackoff:     core.GetPropDur(PropRabbitMqReconnectMaxBackoffMs, time.Millisecond),
	}
}

// AMQP URI, credentials are escaped.
func (c Config) DialUrl() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Vhost,
	}
	return u.String()
}

// Address without credentials, for logging.
func (c Config) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", c.Username, c.Host, c.Port, c.Vhost)
}
