package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	NameUserCreated = "UserCreated"
)

// A user account has been created.
type UserCreated struct {
	IntegrationEvent
	UserId    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserCreated) EventName() string {
	return NameUserCreated
}

func NewUserCreated(userId uuid.UUID, name string, email string, createdAt time.Time) UserCreated {
	return UserCreated{
		IntegrationEvent: NewIntegrationEvent(NameUserCreated),
		UserId:           userId,
		Name:             name,
		Email:            email,
		CreatedAt:        createdAt.UTC(),
	}
}
