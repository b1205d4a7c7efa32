package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/fcg/usuarios/core"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

const (
	ErrCodeEmailTaken = "EMAIL_TAKEN"

	mysqlErrDuplicateEntry = 1062
)

var (
	ErrEmailTaken = core.NewErrfCode(ErrCodeEmailTaken, "Email is already registered")
)

type UserType int

const (
	TypeAdmin     UserType = 1
	TypeRegular   UserType = 2
	TypeModerator UserType = 3
)

func (t UserType) String() string {
	switch t {
	case TypeAdmin:
		return "Admin"
	case TypeRegular:
		return "Regular"
	case TypeModerator:
		return "Moderator"
	}
	return fmt.Sprintf("UserType(%d)", int(t))
}

type User struct {
	Id        string     `gorm:"column:id;primaryKey;size:36"`
	Name      string     `gorm:"column:name;size:128;not null"`
	Email     string     `gorm:"column:email;size:255;not null;uniqueIndex"`
	Type      UserType   `gorm:"column:user_type;not null;default:2;index"`
	Phone     string     `gorm:"column:phone;size:32"`
	BirthDate *time.Time `gorm:"column:birth_date"`
	Address   string     `gorm:"column:address;size:255"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Create or update the users table.
func Migrate(rail core.Rail, db *gorm.DB) error {
	if err := db.WithContext(rail.Context()).AutoMigrate(&User{}); err != nil {
		return core.WrapErrf(err, "failed to migrate table users")
	}
	return nil
}

// Whether err is a unique constraint violation reported by the MySQL or SQLite driver.
func isDuplicateKey(err error) bool {
	var me *mysqldriver.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDuplicateEntry
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func insertUser(rail core.Rail, db *gorm.DB, u *User) error {
	err := db.WithContext(rail.Context()).Create(u).Error
	if err != nil && isDuplicateKey(err) {
		return ErrEmailTaken.WithInternalMsg("email: %v", u.Email)
	}
	return err
}

func saveUser(rail core.Rail, db *gorm.DB, u *User) error {
	err := db.WithContext(rail.Context()).Save(u).Error
	if err != nil && isDuplicateKey(err) {
		return ErrEmailTaken.WithInternalMsg("email: %v", u.Email)
	}
	return err
}

func findUser(rail core.Rail, db *gorm.DB, id string) (User, error) {
	var u User
	err := db.WithContext(rail.Context()).Where("id = ?", id).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return u, core.ErrNotFound.WithInternalMsg("user %v not found", id)
		}
		return u, core.WrapErrf(err, "failed to find user %v", id)
	}
	return u, nil
}

func findUserByEmail(rail core.Rail, db *gorm.DB, email string) (User, error) {
	var u User
	err := db.WithContext(rail.Context()).Where("email = ?", email).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return u, core.ErrNotFound.WithInternalMsg("user with email %v not found", email)
		}
		return u, core.WrapErrf(err, "failed to find user by email %v", email)
	}
	return u, nil
}

func emailTaken(rail core.Rail, db *gorm.DB, email string, excludeId string) (bool, error) {
	var cnt int64
	q := db.WithContext(rail.Context()).Model(&User{}).Where("email = ?", email)
	if excludeId != "" {
		q = q.Where("id <> ?", excludeId)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return false, core.WrapErrf(err, "failed to check email")
	}
	return cnt > 0, nil
}

// List users, filtered by type unless it's zero.
func listUsers(rail core.Rail, db *gorm.DB, typ UserType, p core.Paging) ([]User, int, error) {
	q := func() *gorm.DB {
		tx := db.WithContext(rail.Context()).Model(&User{})
		if typ != 0 {
			tx = tx.Where("user_type = ?", typ)
		}
		return tx
	}

	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, core.WrapErrf(err, "failed to count users")
	}

	var users []User
	err := q().
		Order("created_at desc, id").
		Offset(p.GetOffset()).
		Limit(p.GetLimit()).
		Find(&users).Error
	if err != nil {
		return nil, 0, core.WrapErrf(err, "failed to list users")
	}
	return users, int(total), nil
}

func deleteUser(rail core.Rail, db *gorm.DB, id string) (bool, error) {
	tx := db.WithContext(rail.Context()).Where("id = ?", id).Delete(&User{})
	if tx.Error != nil {
		return false, core.WrapErrf(tx.Error, "failed to delete user %v", id)
	}
	return tx.RowsAffected > 0, nil
}
