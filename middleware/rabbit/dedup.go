package rabbit

import (
	"fmt"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/go-redis/redis"
)

// Remembers messages that were processed.
type Deduplicator interface {
	Seen(rail core.Rail, eventName string, messageId string) (bool, error)
	Mark(rail core.Rail, eventName string, messageId string) error
}

// Deduplicator backed by redis, markers expire after ttl.
type RedisDeduplicator struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, prefix string, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisDeduplicator) key(eventName string, messageId string) string {
	return fmt.Sprintf("%v:event:processed:%v:%v", r.prefix, eventName, messageId)
}

func (r *RedisDeduplicator) Seen(rail core.Rail, eventName string, messageId string) (bool, error) {
	n, err := r.client.Exists(r.key(eventName, messageId)).Result()
	if err != nil {
		return false, core.WrapErrf(err, "failed to check marker of message %v", messageId)
	}
	return n > 0, nil
}

func (r *RedisDeduplicator) Mark(rail core.Rail, eventName string, messageId string) error {
	k := r.key(eventName, messageId)
	ok, err := r.client.SetNX(k, time.Now().UTC().Unix(), r.ttl).Result()
	if err != nil {
		return core.WrapErrf(err, "failed to mark message %v", messageId)
	}
	if !ok {
		rail.Debugf("Message '%v' was already marked processed", messageId)
	}
	return nil
}
