package repositories

import (
	stderrors "errors"
	"groupchat/domain"
	"groupchat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Create_User_And_Find_By_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	created, err := repository.CreateUser("Alice", "Alice@Example.com", "+33612345678", "hash")
	req.NoError(err)
	req.NotEmpty(created.ID)

	byEmail, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(created, byEmail)

	byID, err := repository.GetUser(created.ID)
	req.NoError(err)
	req.Equal("Alice", byID.Name)
	req.Equal(domain.Identity{UserID: created.ID, Name: "Alice"}, byID.Identity())
}

func Test_Email_Is_Unique_Whatever_The_Case(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("Alice", "alice@example.com", "", "hash")
	req.NoError(err)

	_, err = repository.CreateUser("Alice bis", "ALICE@example.com", "", "hash")
	req.True(stderrors.Is(err, errors.ErrUserAlreadyExists))
}

func Test_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser("nobody")
	req.True(stderrors.Is(err, errors.ErrUserNotFound))

	_, err = repository.GetUserByEmail("nobody@example.com")
	req.True(stderrors.Is(err, errors.ErrUserNotFound))
}

func Test_Get_Users_Skips_Unknown_Ids(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	alice, err := repository.CreateUser("Alice", "alice@example.com", "", "hash")
	req.NoError(err)
	bob, err := repository.CreateUser("Bob", "bob@example.com", "", "hash")
	req.NoError(err)

	users, err := repository.GetUsers([]domain.UserID{alice.ID, "ghost", bob.ID, alice.ID})
	req.NoError(err)
	req.Len(users, 2)
	req.Equal("Bob", users[bob.ID].Name)

	all, err := repository.ListUsers()
	req.NoError(err)
	req.Len(all, 2)
}
