package services

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "Invalid email or password")

type AuthService struct {
	config *config.Config
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{config: cfg}
}

// JWT Claims
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        models.UserRole
	Phone       string
	CompanyName string
}

// ProfileUpdate holds the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	Phone          *string
	CompanyName    *string
	Bio            *string
	TelegramChatID *string
}

// HashPassword creates a bcrypt hash of the password
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func (s *AuthService) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateToken creates a JWT token for a user
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.config.JWTExpiration) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.AppName,
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Register creates a new investor or developer account
func (s *AuthService) Register(in RegisterInput) (*models.User, error) {
	db := database.GetDB()
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "Failed to check email")
	}
	if count > 0 {
		return nil, apperr.New(apperr.CodeConflict, "Email already registered")
	}

	passwordHash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "Failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		Phone:        in.Phone,
		CompanyName:  in.CompanyName,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "Failed to create user")
	}

	return user, nil
}

// Login authenticates a user and returns a token
func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	db := database.GetDB()

	var user models.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !s.CheckPassword(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", apperr.New(apperr.CodeForbidden, "Account is disabled")
	}

	token, err := s.GenerateToken(&user)
	if err != nil {
		return nil, "", apperr.Wrap(err, apperr.CodeInternal, "Failed to generate token")
	}

	return &user, token, nil
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := database.GetDB().First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of p.
func (s *AuthService) UpdateProfile(userID uuid.UUID, p ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if p.FirstName != nil {
		user.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		user.LastName = *p.LastName
	}
	if p.Phone != nil {
		user.Phone = *p.Phone
	}
	if p.CompanyName != nil {
		user.CompanyName = *p.CompanyName
	}
	if p.Bio != nil {
		user.Bio = *p.Bio
	}
	if p.TelegramChatID != nil {
		user.TelegramChatID = *p.TelegramChatID
	}

	if err := database.GetDB().Save(user).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "Failed to update profile")
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(userID uuid.UUID, current, next string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(current, user.PasswordHash) {
		return apperr.New(apperr.CodeInvalid, "Current password is incorrect")
	}

	hash, err := s.HashPassword(next)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "Failed to hash password")
	}
	return database.GetDB().Model(user).Update("password_hash", hash).Error
}

// EnsureAdmin creates the configured admin account if it does not exist yet.
func (s *AuthService) EnsureAdmin() (*models.User, error) {
	db := database.GetDB()

	var admin models.User
	err := db.Where("email = ?", strings.ToLower(s.config.AdminEmail)).First(&admin).Error
	if err == nil {
		return &admin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.Register(RegisterInput{
		Email:     s.config.AdminEmail,
		Password:  s.config.AdminPassword,
		FirstName: "Admin",
		LastName:  "User",
		Role:      models.RoleAdmin,
	})
}
