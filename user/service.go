package user

import (
	"errors"
	"strings"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/event"
	"github.com/fcg/usuarios/middleware/rabbit"
	"github.com/fcg/usuarios/util/copyutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateUserReq struct {
	Name      string     `json:"name" binding:"required,max=128"`
	Email     string     `json:"email" binding:"required,email,max=255"`
	Type      UserType   `json:"type" binding:"omitempty,oneof=1 2 3"` // TypeRegular if absent
	Phone     string     `json:"phone" binding:"max=32"`
	BirthDate *time.Time `json:"birthDate"`
	Address   string     `json:"address" binding:"max=255"`
}

// Fields that are absent (or blank name and email) keep their current values.
type UpdateUserReq struct {
	Name      string     `json:"name" binding:"omitempty,max=128"`
	Email     string     `json:"email" binding:"omitempty,email,max=255"`
	Type      *UserType  `json:"type" binding:"omitempty,oneof=1 2 3"`
	Phone     *string    `json:"phone" binding:"omitempty,max=32"`
	BirthDate *time.Time `json:"birthDate"`
	Address   *string    `json:"address" binding:"omitempty,max=255"`
}

type ListUsersReq struct {
	core.Paging
	Type UserType `form:"type" binding:"omitempty,oneof=1 2 3"`
}

type UserView struct {
	Id        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Type      UserType   `json:"type"`
	Phone     string     `json:"phone,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Address   string     `json:"address,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type EmailExistsRes struct {
	Email  string `json:"email"`
	Exists bool   `json:"exists"`
}

type UserService struct {
	db  *gorm.DB
	bus rabbit.EventBus
	now func() time.Time
}

func NewUserService(db *gorm.DB, bus rabbit.EventBus) *UserService {
	return &UserService{db: db, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

/*
Create user and publish UserCreated.

The user is persisted before the event is published, if publishing fails the error is returned while the
user remains.
*/
func (s *UserService) Create(rail core.Rail, req CreateUserReq) (UserView, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" {
		return UserView{}, core.ErrIllegalArgument.WithInternalMsg("name and email are required")
	}
	typ := req.Type
	if typ == 0 {
		typ = TypeRegular
	}

	taken, err := emailTaken(rail, s.db, email, "")
	if err != nil {
		return UserView{}, err
	}
	if taken {
		return UserView{}, ErrEmailTaken.WithInternalMsg("email: %v", email)
	}

	now := s.now()
	u := User{
		Id:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Type:      typ,
		Phone:     strings.TrimSpace(req.Phone),
		BirthDate: req.BirthDate,
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := insertUser(rail, s.db, &u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return UserView{}, err
		}
		return UserView{}, core.WrapErrf(err, "failed to save user")
	}
	rail.Infof("Created user %v, type: %v", u.Id, u.Type)

	view := copyutil.CopyNew[UserView](u)
	if err := s.bus.Publish(rail, event.NewUserCreated(uuid.MustParse(u.Id), u.Name, u.Email, u.CreatedAt)); err != nil {
		return view, core.WrapErrf(err, "user %v created but UserCreated was not published", u.Id)
	}
	return view, nil
}

func (s *UserService) Get(rail core.Rail, id string) (UserView, error) {
	u, err := s.find(rail, id)
	if err != nil {
		return UserView{}, err
	}
	return copyutil.CopyNew[UserView](u), nil
}

func (s *UserService) find(rail core.Rail, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, core.ErrIllegalArgument.WithInternalMsg("invalid user id: %v", id)
	}
	return findUser(rail, s.db, id)
}

func (s *UserService) GetByEmail(rail core.Rail, email string) (UserView, error) {
	email = normalizeEmail(email)
	if email == "" {
		return UserView{}, core.ErrIllegalArgument.WithInternalMsg("email is required")
	}
	u, err := findUserByEmail(rail, s.db, email)
	if err != nil {
		return UserView{}, err
	}
	return copyutil.CopyNew[UserView](u), nil
}

func (s *UserService) EmailExists(rail core.Rail, email string) (EmailExistsRes, error) {
	email = normalizeEmail(email)
	if email == "" {
		return EmailExistsRes{}, core.ErrIllegalArgument.WithInternalMsg("email is required")
	}
	taken, err := emailTaken(rail, s.db, email, "")
	if err != nil {
		return EmailExistsRes{}, err
	}
	return EmailExistsRes{Email: email, Exists: taken}, nil
}

func (s *UserService) List(rail core.Rail, req ListUsersReq) (core.PageRes[UserView], error) {
	users, total, err := listUsers(rail, s.db, req.Type, req.Paging)
	if err != nil {
		return core.PageRes[UserView]{}, err
	}
	return core.PageRes[UserView]{
		Page:    req.Paging.ToRespPage(total),
		Payload: copyutil.CopySlice[UserView](users),
	}, nil
}

// Update the fields present in req, the others keep their current values.
func (s *UserService) Update(rail core.Rail, id string, req UpdateUserReq) (UserView, error) {
	u, err := s.find(rail, id)
	if err != nil {
		return UserView{}, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = name
	}
	if email := normalizeEmail(req.Email); email != "" && email != u.Email {
		taken, err := emailTaken(rail, s.db, email, id)
		if err != nil {
			return UserView{}, err
		}
		if taken {
			return UserView{}, ErrEmailTaken.WithInternalMsg("email: %v", email)
		}
		u.Email = email
	}
	if req.Type != nil {
		u.Type = *req.Type
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.BirthDate != nil {
		u.BirthDate = req.BirthDate
	}
	if req.Address != nil {
		u.Address = strings.TrimSpace(*req.Address)
	}
	u.UpdatedAt = s.now()

	if err := saveUser(rail, s.db, &u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return UserView{}, err
		}
		return UserView{}, core.WrapErrf(err, "failed to update user %v", id)
	}
	return copyutil.CopyNew[UserView](u), nil
}

func (s *UserService) Delete(rail core.Rail, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrIllegalArgument.WithInternalMsg("invalid user id: %v", id)
	}
	ok, err := deleteUser(rail, s.db, id)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNotFound.WithInternalMsg("user %v not found", id)
	}
	rail.Infof("Deleted user %v", id)
	return nil
}
