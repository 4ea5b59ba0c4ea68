package users

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"writer-backend/internal/shared/validation"
)

// DefaultSignupCredits is granted to every new account.
const DefaultSignupCredits = 50

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8,max=72"`
}

type Service struct {
	Repo          Repo
	SignupCredits int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	validate *validator.Validate
}

func NewService(repo Repo, signupCredits int) *Service {
	return &Service{Repo: repo, SignupCredits: signupCredits}
}

// Register creates a standard account with the signup credit grant.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if err := s.validator().Struct(reg); err != nil {
		return User{}, validation.FromValidator(err)
	}

	cost := s.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        reg.Email,
		Name:         reg.Name,
		Role:         RoleStandard,
		Credits:      s.SignupCredits,
		PasswordHash: string(hash),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, user.ID)
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.Repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if user.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SignInWithGoogle returns the account for a Google identity, creating it
// with the signup grant on first sign-in.
func (s *Service) SignInWithGoogle(ctx context.Context, googleSub, email, name string) (User, error) {
	if strings.TrimSpace(googleSub) == "" || strings.TrimSpace(email) == "" {
		return User{}, errors.New("google subject and email are required")
	}
	user, _, err := s.Repo.LinkGoogle(ctx, googleSub, User{
		ID:      uuid.NewString(),
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Name:    strings.TrimSpace(name),
		Role:    RoleStandard,
		Credits: s.SignupCredits,
	})
	return user, err
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

// Promote grants the admin role.
func (s *Service) Promote(ctx context.Context, userID string) error {
	return s.Repo.SetRole(ctx, userID, RoleAdmin)
}

func (s *Service) validator() *validator.Validate {
	if s.validate == nil {
		s.validate = validator.New(validator.WithRequiredStructEnabled())
		s.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		})
	}
	return s.validate
}
