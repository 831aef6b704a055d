package services

import (
	"fmt"
	"groupchat/auth"
	"groupchat/domain"
	"groupchat/errors"
	"groupchat/repositories"
	"log/slog"
	"strings"
)

type IAuthService interface {
	Login(req auth.LoginRequest) (Session, error)
	Register(req auth.RegisterRequest) (Session, error)
	Verify(token string) (domain.Identity, error)
	ListUsers() ([]domain.User, error)
}

// Session is what a successful signup or login hands back to the client.
type Session struct {
	Token Token       `json:"token"`
	User  domain.User `json:"user"`
}

type Token string

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, tokens *auth.TokenIssuer) IAuthService {
	return &AuthService{log: log, userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(req auth.RegisterRequest) (Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	// Business rules first, before any expensive cryptographic operation.
	if err := auth.ValidateRegister(req); err != nil {
		return Session{}, err
	}

	// The repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, errors.Internal(fmt.Errorf("hashing failed: %w", err))
	}

	user, err := s.userRepository.CreateUser(req.Name, req.Email, req.Phone, hashedPassword)
	if err != nil {
		return Session{}, errors.Internal(err)
	}
	s.log.Info("User registered", "user", user.ID)

	return s.session(user)
}

func (s *AuthService) Login(req auth.LoginRequest) (Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := auth.ValidateLogin(req); err != nil {
		return Session{}, err
	}

	user, err := s.userRepository.GetUserByEmail(req.Email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	return s.session(user)
}

func (s *AuthService) Verify(token string) (domain.Identity, error) {
	return s.tokens.Verify(token)
}

func (s *AuthService) ListUsers() ([]domain.User, error) {
	users, err := s.userRepository.ListUsers()
	if err != nil {
		return nil, errors.Internal(err)
	}
	profiles := make([]domain.User, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}

func (s *AuthService) session(user repositories.User) (Session, error) {
	token, err := s.tokens.Generate(user.Identity(), user.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: Token(token), User: user.Profile()}, nil
}
