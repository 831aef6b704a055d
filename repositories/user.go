//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"groupchat/domain"
	"groupchat/errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(name, email, phone, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUser(id domain.UserID) (User, error)
	GetUsers(ids []domain.UserID) (map[domain.UserID]User, error)
	ListUsers() ([]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the stored account, credentials included.
type User struct {
	ID           domain.UserID `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	PasswordHash string        `json:"passwordHash"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (u User) Profile() domain.User {
	return domain.User{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, CreatedAt: u.CreatedAt}
}

func (u User) Identity() domain.Identity {
	return domain.Identity{UserID: u.ID, Name: u.Name}
}

func userKey(id domain.UserID) []byte { return []byte("user:" + string(id)) }

func emailKey(email string) []byte {
	return []byte("idx:user:email:" + strings.ToLower(email))
}

// CreateUser persists a new account and its email index in one transaction.
// The email is unique: a second signup with the same address fails with
// ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(name, email, phone, hashedPassword string) (User, error) {
	user := User{
		ID:           domain.UserID(uuid.NewString()),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	err := update(u.db, func(txn *badger.Txn) error {
		taken, err := exists(txn, emailKey(email))
		if err != nil {
			return err
		}
		if taken {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(emailKey(email), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userKey(user.ID), user)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(domain.UserID(id)), &user)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrUserNotFound
	}
	return user, err
}

func (u *UserRepository) GetUser(id domain.UserID) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrUserNotFound
	}
	return user, err
}

// GetUsers resolves several ids at once. Unknown ids are simply absent from the result.
func (u *UserRepository) GetUsers(ids []domain.UserID) (map[domain.UserID]User, error) {
	users := make(map[domain.UserID]User, len(ids))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, ok := users[id]; ok {
				continue
			}
			var user User
			err := getJSON(txn, userKey(id), &user)
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			users[id] = user
		}
		return nil
	})
	return users, err
}

func (u *UserRepository) ListUsers() ([]User, error) {
	var users []User
	err := u.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("user:"), func(_, val []byte) error {
			var user User
			if err := json.Unmarshal(val, &user); err != nil {
				return fmt.Errorf("unmarshal user: %w", err)
			}
			users = append(users, user)
			return nil
		})
	})
	return users, err
}
