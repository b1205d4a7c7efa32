package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	NameNotification = "Notification"

	MetadataEmail     = "Email"
	MetadataCreatedAt = "CreatedAt"
)

type NotificationKind int

const (
	KindUserCreated       NotificationKind = 1
	KindPaymentStarted    NotificationKind = 2
	KindPaymentApproved   NotificationKind = 3
	KindPaymentDeclined   NotificationKind = 4
	KindPurchaseCompleted NotificationKind = 5
)

func (k NotificationKind) String() string {
	switch k {
	case KindUserCreated:
		return "UserCreated"
	case KindPaymentStarted:
		return "PaymentStarted"
	case KindPaymentApproved:
		return "PaymentApproved"
	case KindPaymentDeclined:
		return "PaymentDeclined"
	case KindPurchaseCompleted:
		return "PurchaseCompleted"
	}
	return fmt.Sprintf("NotificationKind(%d)", int(k))
}

// Request to notify a user.
type Notification struct {
	IntegrationEvent
	UserId   uuid.UUID         `json:"userId"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Kind     NotificationKind  `json:"kind"`
	Metadata map[string]string `json:"metadata"`
}

func (Notification) EventName() string {
	return NameNotification
}

func NewNotification(userId uuid.UUID, title string, message string, kind NotificationKind, metadata map[string]string) Notification {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Notification{
		IntegrationEvent: NewIntegrationEvent(NameNotification),
		UserId:           userId,
		Title:            title,
		Message:          message,
		Kind:             kind,
		Metadata:         metadata,
	}
}

// Welcome notification sent once the user account is created.
func NewWelcomeNotification(uc UserCreated) Notification {
	return NewNotification(
		uc.UserId,
		"Welcome!",
		fmt.Sprintf("Hello %s, your account has been created successfully!", uc.Name),
		KindUserCreated,
		map[string]string{
			MetadataEmail:     uc.Email,
			MetadataCreatedAt: uc.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	)
}
