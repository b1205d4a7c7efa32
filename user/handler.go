package user

import (
	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/event"
	"github.com/fcg/usuarios/middleware/rabbit"
	"github.com/google/uuid"
)

const scopeKeyWelcomeId = "welcomeNotificationId"

// Sends the welcome notification once a user is created.
type UserCreatedHandler struct{}

func NewUserCreatedHandler(sc *rabbit.Scope) rabbit.Handler[event.UserCreated] {
	sc.OnClose(func() {
		if id, ok := rabbit.ScopeValue[uuid.UUID](sc, scopeKeyWelcomeId); ok {
			sc.Rail.Debugf("Message '%v' handled, welcome notification: %v", sc.Delivery.MessageId, id)
		}
	})
	return UserCreatedHandler{}
}

func (UserCreatedHandler) Handle(sc *rabbit.Scope, evt event.UserCreated) error {
	sc.Rail.Infof("User created, userId: %v, email: %v", evt.UserId, evt.Email)
	n := event.NewWelcomeNotification(evt)
	if err := sc.Publish(n); err != nil {
		return core.WrapErrf(err, "failed to publish welcome notification of user %v", evt.UserId)
	}
	sc.Set(scopeKeyWelcomeId, n.Id)
	return nil
}

// Logs notifications, delivery to the user is handled by the notification service.
type NotificationHandler struct{}

func (NotificationHandler) Handle(sc *rabbit.Scope, n event.Notification) error {
	sc.Rail.Infof("Notification for user %v, kind: %v, title: '%v', message: '%v', metadata: %v",
		n.UserId, n.Kind, n.Title, n.Message, n.Metadata)
	return nil
}

// Subscribe handlers of the events consumed by the user service.
func SubscribeEventHandlers(rail core.Rail, b *rabbit.RabbitBus) error {
	if err := rabbit.Subscribe(rail, b, NewUserCreatedHandler); err != nil {
		return err
	}
	if err := rabbit.SubscribeFunc(rail, b, NotificationHandler{}.Handle); err != nil {
		return err
	}
	rail.Infof("Subscribed events: %v", b.Subscriptions())
	return nil
}
