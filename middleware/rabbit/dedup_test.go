package rabbit

import (
	"testing"
	"time"
)

func TestRedisDeduplicatorKey(t *testing.T) {
	d := NewRedisDeduplicator(nil, "usuarios", time.Hour)
	k := d.key("UserCreated", "0b7e1d9a")
	if k != "usuarios:event:processed:UserCreated:0b7e1d9a" {
		t.Fatalf("unexpected key %v", k)
	}
}
