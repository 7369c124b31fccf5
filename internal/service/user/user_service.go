// Package user covers registration, login, and the participant-facing
// queries: quota standing and won prizes.
package user

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"prizedraw/internal/model"
	"prizedraw/internal/store"
	iutils "prizedraw/internal/utils"
	"prizedraw/pkg/log"
	"prizedraw/pkg/utils"
)

// RegisterRequest register request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Password string `json:"password" binding:"required,min=6,max=64"`
}

// LoginRequest login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// QuotaUpdateRequest adjusts a user's daily caps.
type QuotaUpdateRequest struct {
	UserID    uint64 `json:"user_id" binding:"required"`
	DrawQuota int    `json:"draw_quota" binding:"min=0"`
	WinQuota  int    `json:"win_quota" binding:"min=0"`
}

// Service user service interface
type Service interface {
	Register(ctx context.Context, req *RegisterRequest) (*model.UserVO, error)
	EnsureAdmin(ctx context.Context, username, password string) (*model.UserVO, error)
	Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	GetUser(ctx context.Context, id uint64) (*model.UserVO, error)
	UpdateQuota(ctx context.Context, req *QuotaUpdateRequest) (*model.UserVO, error)
	ListWinRecords(ctx context.Context, userID uint64, limit int) ([]*model.WinRecord, error)
}

type service struct {
	store      *store.TreeStore
	jwtManager *iutils.JWTManager

	defaultDrawQuota int
	defaultWinQuota  int

	now func() time.Time
}

// NewService creates a user service. New accounts start with the given
// daily quotas.
func NewService(st *store.TreeStore, jwtManager *iutils.JWTManager, defaultDrawQuota, defaultWinQuota int) Service {
	return &service{
		store:            st,
		jwtManager:       jwtManager,
		defaultDrawQuota: defaultDrawQuota,
		defaultWinQuota:  defaultWinQuota,
		now:              time.Now,
	}
}

func (s *service) Register(ctx context.Context, req *RegisterRequest) (*model.UserVO, error) {
	if existing, err := s.findByUsername(req.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, utils.ErrUserExists
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "hash password")
	}

	now := s.now()
	u := &model.User{
		ID:           s.nextID(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         model.RoleUser,
		DrawQuota:    s.defaultDrawQuota,
		WinQuota:     s.defaultWinQuota,
		Status:       model.UserStatusNormal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Put(store.NamespaceUsers, int64(u.ID), u); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"user_id":  u.ID,
		"username": u.Username,
	}).Info("User registered")
	return u.View(), nil
}

// EnsureAdmin creates the named account with the admin role, or promotes it
// if it already exists. Called at startup with the configured credentials so
// the administrative surface is reachable without editing the store by hand.
func (s *service) EnsureAdmin(ctx context.Context, username, password string) (*model.UserVO, error) {
	if username == "" || password == "" {
		return nil, utils.NewError(utils.CodeInvalidParam, "admin username and password are required")
	}

	u, err := s.findByUsername(username)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case u == nil:
		hash, err := utils.HashPassword(password)
		if err != nil {
			return nil, utils.WrapError(err, utils.CodeInternalError, "hash password")
		}
		u = &model.User{
			ID:           s.nextID(),
			Username:     username,
			PasswordHash: hash,
			Role:         model.RoleAdmin,
			DrawQuota:    s.defaultDrawQuota,
			WinQuota:     s.defaultWinQuota,
			Status:       model.UserStatusNormal,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	case u.Role == model.RoleAdmin:
		return u.View(), nil
	default:
		u.Role = model.RoleAdmin
		u.UpdatedAt = now
	}

	if err := s.store.Put(store.NamespaceUsers, int64(u.ID), u); err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"user_id":  u.ID,
		"username": u.Username,
	}).Info("Admin account ensured")
	return u.View(), nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	u, err := s.findByUsername(req.Username)
	if err != nil {
		return nil, err
	}
	// The same response for a missing user and a wrong password keeps
	// usernames unenumerable.
	if u == nil || !utils.VerifyPassword(req.Password, u.PasswordHash) {
		log.WithFields(map[string]interface{}{
			"username": req.Username,
		}).Warn("Login rejected")
		return nil, utils.NewError(utils.CodeUnauthorized, "username or password incorrect")
	}
	if !u.IsActive() {
		return nil, utils.NewError(utils.CodeForbidden, "account disabled")
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}

	loginAt := s.now()
	u.LastLoginAt = &loginAt
	u.UpdatedAt = loginAt
	if err := s.store.Put(store.NamespaceUsers, int64(u.ID), u); err != nil {
		log.WithFields(map[string]interface{}{
			"user_id": u.ID,
			"error":   err.Error(),
		}).Error("Failed to record last login")
	}

	log.WithFields(map[string]interface{}{
		"user_id":  u.ID,
		"username": u.Username,
	}).Info("User logged in")
	return tokens, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, utils.NewError(utils.CodeUnauthorized, "refresh token invalid")
	}

	var u model.User
	found, err := s.store.Get(store.NamespaceUsers, int64(claims.UserID), &u)
	if err != nil {
		return nil, err
	}
	if !found || !u.IsActive() {
		return nil, utils.NewError(utils.CodeUnauthorized, "refresh token invalid")
	}
	return s.issueTokens(&u)
}

func (s *service) GetUser(ctx context.Context, id uint64) (*model.UserVO, error) {
	var u model.User
	found, err := s.store.Get(store.NamespaceUsers, int64(id), &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrUserNotFound
	}
	return u.View(), nil
}

func (s *service) UpdateQuota(ctx context.Context, req *QuotaUpdateRequest) (*model.UserVO, error) {
	if req.DrawQuota < 0 || req.WinQuota < 0 {
		return nil, utils.NewError(utils.CodeInvalidParam, "quotas must not be negative")
	}

	var u model.User
	found, err := s.store.Get(store.NamespaceUsers, int64(req.UserID), &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrUserNotFound
	}

	u.DrawQuota = req.DrawQuota
	u.WinQuota = req.WinQuota
	u.UpdatedAt = s.now()
	if err := s.store.Put(store.NamespaceUsers, int64(u.ID), &u); err != nil {
		return nil, err
	}
	return u.View(), nil
}

// ListWinRecords returns the user's wins, oldest first. Record keys are
// snowflake IDs, so key order is creation order.
func (s *service) ListWinRecords(ctx context.Context, userID uint64, limit int) ([]*model.WinRecord, error) {
	var out []*model.WinRecord
	var decodeErr error
	s.store.Scan(store.NamespaceWinRecords, 0, func(key int64, value []byte) bool {
		var r model.WinRecord
		if err := json.Unmarshal(value, &r); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode win record")
			return false
		}
		if r.UserID != userID {
			return true
		}
		out = append(out, &r)
		return limit <= 0 || len(out) < limit
	})
	return out, decodeErr
}

func (s *service) issueTokens(u *model.User) (*TokenResponse, error) {
	access, err := s.jwtManager.GenerateAccessToken(u.ID, u.Username, u.EffectiveRole())
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "generate access token")
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(u.ID, u.Username)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "generate refresh token")
	}
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtManager.AccessExpire().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// findByUsername walks the user namespace. Logins and registrations are
// orders of magnitude rarer than draws, so a linear scan beats maintaining
// a second index namespace.
func (s *service) findByUsername(username string) (*model.User, error) {
	var match *model.User
	var decodeErr error
	s.store.Scan(store.NamespaceUsers, 0, func(key int64, value []byte) bool {
		var u model.User
		if err := json.Unmarshal(value, &u); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode user")
			return false
		}
		if u.Username == username {
			match = &u
			return false
		}
		return true
	})
	return match, decodeErr
}

func (s *service) nextID() uint64 {
	var discard json.RawMessage
	key, found, err := s.store.Floor(store.NamespaceUsers, math.MaxInt64, &discard)
	if err != nil || !found {
		return 1
	}
	return uint64(key) + 1
}
