package user

import (
	"testing"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/event"
	"github.com/fcg/usuarios/middleware/rabbit"
	"github.com/google/uuid"
)

func TestUserCreatedHandlerPublishesWelcome(t *testing.T) {
	bus := &recordingBus{}
	rail := core.EmptyRail()
	sc := rabbit.NewScope(rail, bus, rabbit.DeliveryInfo{EventName: event.NameUserCreated})

	createdAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	uc := event.NewUserCreated(uuid.New(), "Ana", "ana@example.com", createdAt)
	if err := NewUserCreatedHandler(sc).Handle(sc, uc); err != nil {
		t.Fatal(err)
	}

	evts := bus.events()
	if len(evts) != 1 {
		t.Fatalf("expected 1 event, got %v", len(evts))
	}
	n, ok := evts[0].(event.Notification)
	if !ok {
		t.Fatalf("unexpected event %#v", evts[0])
	}
	if n.UserId != uc.UserId || n.Title != "Welcome!" || n.Kind != event.KindUserCreated {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.Metadata[event.MetadataEmail] != "ana@example.com" || n.Metadata[event.MetadataCreatedAt] != createdAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected metadata %v", n.Metadata)
	}
	if bus.rails[0].TraceId() != rail.TraceId() {
		t.Fatal("trace should be propagated")
	}
	if id, ok := rabbit.ScopeValue[uuid.UUID](sc, scopeKeyWelcomeId); !ok || id != n.Id {
		t.Fatalf("welcome notification id should be kept in scope, %v", id)
	}
}

func TestUserCreatedHandlerPublishFailure(t *testing.T) {
	bus := &recordingBus{fail: true}
	sc := rabbit.NewScope(core.EmptyRail(), bus, rabbit.DeliveryInfo{})
	uc := event.NewUserCreated(uuid.New(), "Ana", "ana@example.com", time.Now())
	if err := NewUserCreatedHandler(sc).Handle(sc, uc); err == nil {
		t.Fatal("failure should be returned so the delivery is requeued")
	}
	if _, ok := rabbit.ScopeValue[uuid.UUID](sc, scopeKeyWelcomeId); ok {
		t.Fatal("nothing should be kept when publishing failed")
	}
}

func TestNotificationHandler(t *testing.T) {
	sc := rabbit.NewScope(core.EmptyRail(), &recordingBus{}, rabbit.DeliveryInfo{})
	n := event.NewNotification(uuid.New(), "t", "m", event.KindPaymentApproved, nil)
	if err := (NotificationHandler{}).Handle(sc, n); err != nil {
		t.Fatal(err)
	}
}
