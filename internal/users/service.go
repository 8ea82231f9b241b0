package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"wifihub/internal/auth"
	"wifihub/internal/logger"
	"wifihub/internal/models"
	"wifihub/internal/utils"
)

const (
	MsgRegisterRequired  = "Semua field wajib diisi"
	MsgInvalidEmail      = "Format email tidak valid"
	MsgEmailRegistered   = "Email sudah terdaftar"
	MsgLoginRequired     = "Email dan password wajib diisi"
	MsgBadCredentials    = "Email atau password salah"
	MsgProfileRequired   = "Nama dan email wajib diisi"
	MsgEmailTaken        = "Email sudah digunakan oleh pengguna lain"
	MsgCurrentPwRequired = "Password saat ini diperlukan untuk verifikasi"
	MsgCurrentPwWrong    = "Password saat ini salah"
	MsgNoChanges         = "Tidak ada perubahan yang dilakukan"
	MsgUserNotFound      = "User tidak ditemukan"
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	EmailTakenByOther(ctx context.Context, email string, userID int64) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User, withPassword bool) error
}

// Service owns registration, login and profile maintenance.
type Service struct {
	Store      UserStore
	Tokens     *auth.TokenManager
	Validate   *validator.Validate
	Logger     *logger.Logger
	BcryptCost int
}

func NewService(store UserStore, tokens *auth.TokenManager, log *logger.Logger) *Service {
	return &Service{
		Store:      store,
		Tokens:     tokens,
		Validate:   utils.NewValidator(),
		Logger:     log,
		BcryptCost: bcrypt.DefaultCost,
	}
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.Validate.Struct(req); err != nil {
		if utils.HasTag(err, "required") {
			return nil, utils.NewUserError(utils.ErrValidation, MsgRegisterRequired)
		}
		return nil, utils.NewUserError(utils.ErrValidation, MsgInvalidEmail)
	}

	if _, err := s.Store.FindByEmail(ctx, req.Email); err == nil {
		return nil, utils.NewUserError(utils.ErrConflict, MsgEmailRegistered)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
	}
	if err := s.Store.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.Logger.Info("USERS", fmt.Sprintf("Registered user %d", user.ID))
	return user, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := s.Validate.Struct(req); err != nil {
		return nil, utils.NewUserError(utils.ErrValidation, MsgLoginRequired)
	}

	user, err := s.Store.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, sql.ErrNoRows) {
		s.Logger.LogSecurity("LOGIN", "unknown email")
		return nil, utils.NewUserError(utils.ErrUnauthorized, MsgBadCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.Logger.LogSecurity("LOGIN", fmt.Sprintf("wrong password for user %d", user.ID))
		return nil, utils.NewUserError(utils.ErrUnauthorized, MsgBadCredentials)
	}

	token, expiresAt, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the presented token server-side.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	return s.Tokens.Revoke(ctx, claims)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req models.UpdateProfileRequest) (*models.User, error) {
	if req.UserID != 0 && req.UserID != userID {
		return nil, utils.NewUserError(utils.ErrForbidden, "Akses ditolak")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.Validate.Struct(req); err != nil {
		if utils.HasTag(err, "required") {
			return nil, utils.NewUserError(utils.ErrValidation, MsgProfileRequired)
		}
		return nil, utils.NewUserError(utils.ErrValidation, MsgInvalidEmail)
	}

	user, err := s.Store.FindByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewUserError(utils.ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	taken, err := s.Store.EmailTakenByOther(ctx, req.Email, userID)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, utils.NewUserError(utils.ErrConflict, MsgEmailTaken)
	}

	changePassword := req.NewPassword != ""
	if changePassword {
		if req.CurrentPassword == "" {
			return nil, utils.NewUserError(utils.ErrValidation, MsgCurrentPwRequired)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return nil, utils.NewUserError(utils.ErrValidation, MsgCurrentPwWrong)
		}
	}

	phone := user.Phone
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
	}

	if !changePassword && user.Name == req.Name && user.Email == req.Email && user.Phone == phone {
		return nil, utils.NewUserError(utils.ErrValidation, MsgNoChanges)
	}

	user.Name = req.Name
	user.Email = req.Email
	user.Phone = phone
	if changePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.Store.Update(ctx, user, changePassword); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.Logger.Info("USERS", fmt.Sprintf("Profile updated for user %d", userID))
	return user, nil
}
