package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursepilot/backend/internal/data/db"
	authrepo "github.com/coursepilot/backend/internal/data/repos/auth"
	userrepo "github.com/coursepilot/backend/internal/data/repos/user"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
	"github.com/coursepilot/backend/internal/requestdata"
)

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*types.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error

	// SetContextFromToken validates the access token and attaches the
	// caller's identity to the context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db  *gorm.DB
	log *logger.Logger

	userRepo  userrepo.UserRepo
	tokenRepo authrepo.UserTokenRepo

	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo userrepo.UserRepo,
	tokenRepo authrepo.UserTokenRepo,
	secret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) (AuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, apierr.Configuration(fmt.Errorf("missing JWT secret"))
	}
	return &authService{
		db:         db,
		log:        log.With("service", "AuthService"),
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (as *authService) Register(ctx context.Context, input RegisterInput) (*types.User, *TokenPair, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, apierr.Validation(fmt.Errorf("a valid email is required"))
	}
	if len(input.Password) < 8 {
		return nil, nil, apierr.Validation(fmt.Errorf("password must be at least 8 characters"))
	}

	existing, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, nil, apierr.Persistence(fmt.Errorf("lookup user: %w", err))
	}
	if existing != nil {
		return nil, nil, apierr.Validation(fmt.Errorf("email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, apierr.Persistence(fmt.Errorf("hash password: %w", err))
	}

	user := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := as.userRepo.Create(ctx, tx, []*types.User{user}); cErr != nil {
			// Two concurrent registrations can both pass the GetByEmail check;
			// the unique index settles it.
			if db.IsUniqueViolation(cErr) {
				return apierr.Validation(fmt.Errorf("email already registered"))
			}
			return apierr.Persistence(fmt.Errorf("create user: %w", cErr))
		}
		var mErr error
		pair, mErr = as.mintTokens(ctx, tx, user.ID)
		return mErr
	})
	if err != nil {
		return nil, nil, err
	}

	as.log.Info("User registered", "user_id", user.ID, "email", email)
	return user, pair, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error) {
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, nil, apierr.Persistence(fmt.Errorf("lookup user: %w", err))
	}
	if user == nil {
		return nil, nil, apierr.Unauthorized(fmt.Errorf("invalid credentials"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, apierr.Unauthorized(fmt.Errorf("invalid credentials"))
	}

	pair, err := as.mintTokens(ctx, nil, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (as *authService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := as.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apierr.Unauthorized(fmt.Errorf("invalid token subject"))
	}

	stored, err := as.tokenRepo.GetByRefreshToken(ctx, nil, refreshToken)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("lookup refresh token: %w", err))
	}
	if stored == nil || stored.UserID != userID {
		return nil, apierr.Unauthorized(fmt.Errorf("refresh token revoked"))
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := as.tokenRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{stored.ID}); dErr != nil {
			return apierr.Persistence(fmt.Errorf("rotate refresh token: %w", dErr))
		}
		var mErr error
		pair, mErr = as.mintTokens(ctx, tx, userID)
		return mErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (as *authService) Logout(ctx context.Context, accessToken string) error {
	stored, err := as.tokenRepo.GetByAccessToken(ctx, nil, accessToken)
	if err != nil {
		return apierr.Persistence(fmt.Errorf("lookup access token: %w", err))
	}
	if stored == nil {
		return nil
	}
	if err := as.tokenRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{stored.ID}); err != nil {
		return apierr.Persistence(fmt.Errorf("delete token: %w", err))
	}
	return nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims, err := as.parseToken(tokenString)
	if err != nil {
		return ctx, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, apierr.Unauthorized(fmt.Errorf("invalid token subject"))
	}

	stored, err := as.tokenRepo.GetByAccessToken(ctx, nil, tokenString)
	if err != nil {
		return ctx, apierr.Persistence(fmt.Errorf("lookup access token: %w", err))
	}
	if stored == nil || stored.UserID != userID {
		return ctx, apierr.Unauthorized(fmt.Errorf("token revoked"))
	}

	rd := &requestdata.RequestData{
		TokenString:  tokenString,
		RefreshToken: stored.RefreshToken,
		UserID:       userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) mintTokens(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*TokenPair, error) {
	now := time.Now()

	access, err := as.signToken(userID, now, as.accessTTL)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("sign access token: %w", err))
	}
	refresh, err := as.signToken(userID, now, as.refreshTTL)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("sign refresh token: %w", err))
	}

	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(as.refreshTTL),
	}
	if _, err := as.tokenRepo.Create(ctx, tx, []*types.UserToken{row}); err != nil {
		return nil, apierr.Persistence(fmt.Errorf("store tokens: %w", err))
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (as *authService) signToken(userID uuid.UUID, now time.Time, ttl time.Duration) (string, error) {
	claims := JWTClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.secret)
}

func (as *authService) parseToken(tokenString string) (*JWTClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, apierr.Unauthorized(fmt.Errorf("missing token"))
	}
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return as.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apierr.Unauthorized(fmt.Errorf("invalid token"))
	}
	return claims, nil
}
