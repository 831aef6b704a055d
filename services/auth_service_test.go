package services

import (
	"groupchat/auth"
	"groupchat/errors"
	"groupchat/mocks"
	"groupchat/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer(testSecret, 24*time.Hour)
	svc := NewAuthService(slog.Default(), mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!"

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser("Alice", "alice@example.com", "", gomock.Not(password)).
			DoAndReturn(func(name, email, phone, hash string) (repositories.User, error) {
				match, err := auth.ComparePassword(password, hash)
				req.NoError(err)
				req.True(match)
				return repositories.User{ID: "user-uuid", Name: name, Email: email, PasswordHash: hash}, nil
			}).
			Times(1)

		session, err := svc.Register(auth.RegisterRequest{Name: " Alice ", Email: "alice@example.com", Password: password})

		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal("Alice", session.User.Name)

		identity, err := tokens.Verify(string(session.Token))
		req.NoError(err)
		req.Equal("user-uuid", string(identity.UserID))
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register(auth.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "onlyletters"})

		req.ErrorIs(err, errors.ErrWeakPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("Alice", "duplicate@example.com", "", gomock.Any()).
			Return(repositories.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(auth.RegisterRequest{Name: "Alice", Email: "duplicate@example.com", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer(testSecret, 24*time.Hour)
	svc := NewAuthService(slog.Default(), mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := repositories.User{
			ID:           "uuid-123",
			Name:         "User",
			Email:        email,
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		session, err := svc.Login(auth.LoginRequest{Email: email, Password: password})

		req.NoError(err)
		req.NotEmpty(session.Token)

		identity, err := svc.Verify(string(session.Token))
		req.NoError(err)
		req.Equal(storedUser.ID, identity.UserID)
		req.Equal("User", identity.Name)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(repositories.User{Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login(auth.LoginRequest{Email: email, Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(repositories.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login(auth.LoginRequest{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_ListUsers_Hides_Credentials(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(slog.Default(), mockRepo, auth.NewTokenIssuer(testSecret, time.Hour))

	mockRepo.EXPECT().ListUsers().Return([]repositories.User{
		{ID: "u1", Name: "Alice", Email: "alice@example.com", PasswordHash: "secret"},
	}, nil)

	users, err := svc.ListUsers()
	req.NoError(err)
	req.Len(users, 1)
	req.Equal("Alice", users[0].Name)
	req.Equal("alice@example.com", users[0].Email)
}
