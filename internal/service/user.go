package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"barebones/internal/core/config"
	"barebones/internal/core/logger"
	"barebones/internal/core/snowflake"
	"barebones/internal/event"
	"barebones/internal/model"
	"barebones/internal/pkg/apperr"
	"barebones/internal/pkg/pool"
	"barebones/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var errBadLogin = apperr.NewAppError(apperr.CodeUnauthorized, apperr.KindPermission, "用户名或密码错误")

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// UserService 用户服务
type UserService struct {
	store  *repository.Store
	cache  *pool.Layered
	caps   *Capabilities
	jwtCfg config.JWTConfig
	bus    *event.Bus
}

// NewUserService 创建用户服务
func NewUserService(store *repository.Store, cache *pool.Layered, caps *Capabilities, jwtCfg config.JWTConfig, bus *event.Bus) *UserService {
	return &UserService{store: store, cache: cache, caps: caps, jwtCfg: jwtCfg, bus: bus}
}

// Register 用户注册. New accounts are subscribers, so their forum role comes
// from the configured default.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.UserDTO, error) {
	username := strings.TrimSpace(req.Username)
	exist, err := s.store.Repos().Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if exist != nil {
		return nil, apperr.NewAppError(apperr.CodeConflict, apperr.KindConflict, "用户名已被占用")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register: hash password error", logger.ErrorField(err))
		return nil, apperr.Storage(err)
	}

	now := time.Now().Unix()
	user := &model.User{
		ID:        snowflake.Generate(),
		Username:  username,
		Password:  string(hashed),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		SiteRole:  model.SiteSubscriber,
		Status:    model.UserActive,
		CreatedAt: now,
		LastVisit: now,
	}
	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, apperr.Storage(err)
	}
	logger.Info("user registered", logger.Int64("user_id", user.ID), logger.String("username", user.Username))
	return s.toDTO(user, true), nil
}

// Login 用户登录
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.store.Repos().Users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if user == nil {
		return nil, errBadLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errBadLogin
	}
	if user.Status == model.UserDeleted {
		return nil, apperr.Forbidden("账号已被删除")
	}

	if err := s.store.Repos().Users.UpdateLastVisit(ctx, user.ID, time.Now().Unix()); err != nil {
		logger.Warn("login: update last visit failed", logger.Int64("user_id", user.ID), logger.ErrorField(err))
	}

	token, err := GenerateJWT(user.ID, s.jwtCfg)
	if err != nil {
		logger.Error("login: generate token error", logger.ErrorField(err))
		return nil, apperr.Storage(err)
	}
	return &model.LoginResponse{Token: token, User: *s.toDTO(user, true)}, nil
}

// Authenticate loads the account behind a verified token. Deleted accounts
// are treated as guests.
func (s *UserService) Authenticate(ctx context.Context, uid int64) (*model.User, error) {
	user, err := s.store.Repos().Users.GetByID(ctx, uid)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if user == nil || user.Status == model.UserDeleted {
		return nil, nil
	}
	return user, nil
}

// Get 获取用户资料. Email is only shown to the user and to keymasters.
func (s *UserService) Get(ctx context.Context, viewer *model.User, uid int64) (*model.UserDTO, error) {
	var dto model.UserDTO
	found, err := s.cache.GetOrLoad(ctx, userKey(uid), &dto, func(ctx context.Context) (any, error) {
		user, err := s.store.Repos().Users.GetByID(ctx, uid)
		if err != nil || user == nil {
			return nil, err
		}
		return s.toDTO(user, true), nil
	})
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !found {
		return nil, apperr.ErrUserNotFound
	}
	if viewer == nil || (viewer.ID != uid && !s.caps.IsKeymaster(viewer)) {
		dto.Email = ""
	}
	return &dto, nil
}

// List 用户列表, keymasters only
func (s *UserService) List(ctx context.Context, viewer *model.User, offset, limit int) ([]*model.UserDTO, error) {
	if !s.caps.IsKeymaster(viewer) {
		return nil, apperr.ErrForbidden
	}
	users, err := s.store.Repos().Users.List(ctx, offset, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	list := make([]*model.UserDTO, 0, len(users))
	for _, u := range users {
		list = append(list, s.toDTO(u, true))
	}
	return list, nil
}

// SetForumRole assigns an explicit forum role; "" clears the assignment.
func (s *UserService) SetForumRole(ctx context.Context, actor *model.User, uid int64, role string) (*model.UserDTO, error) {
	if !s.caps.IsKeymaster(actor) {
		return nil, apperr.ErrForbidden
	}
	if role != "" && !Role(role).Valid() {
		return nil, apperr.NewAppError(apperr.CodeBadRequest, apperr.KindValidation, "unknown forum role")
	}
	return s.update(ctx, actor, uid, func(u *model.User) error {
		if actor.ID == u.ID && Role(role) != RoleKeymaster && u.SiteRole != model.SiteAdministrator {
			return apperr.NewAppError(apperr.CodeBadRequest, apperr.KindValidation, "keymasters cannot demote themselves")
		}
		u.ForumRole = role
		return nil
	})
}

// SetStatus marks an account active, spam or deleted. Inactive accounts keep
// read access only.
func (s *UserService) SetStatus(ctx context.Context, actor *model.User, uid int64, status model.UserStatus) (*model.UserDTO, error) {
	if !s.caps.Can(actor, CapModerate) {
		return nil, apperr.ErrForbidden
	}
	switch status {
	case model.UserActive, model.UserSpam, model.UserDeleted:
	default:
		return nil, apperr.NewAppError(apperr.CodeBadRequest, apperr.KindValidation, "unknown user status")
	}
	return s.update(ctx, actor, uid, func(u *model.User) error {
		if s.caps.ResolveRole(u).Rank() >= s.caps.ResolveRole(actor).Rank() && !s.caps.IsKeymaster(actor) {
			return apperr.ErrForbidden
		}
		if u.ID == actor.ID {
			return apperr.NewAppError(apperr.CodeBadRequest, apperr.KindValidation, "cannot change your own status")
		}
		u.Status = status
		return nil
	})
}

func (s *UserService) update(ctx context.Context, actor *model.User, uid int64, fn func(u *model.User) error) (*model.UserDTO, error) {
	var user *model.User
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		user, err = r.Users.GetByID(ctx, uid)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.ErrUserNotFound
		}
		if err := fn(user); err != nil {
			return err
		}
		return r.Users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, userKey(uid)); err != nil {
		logger.Warn("user cache invalidate failed", logger.Int64("user_id", uid), logger.ErrorField(err))
	}
	logger.Info("user changed",
		logger.Int64("user_id", uid),
		logger.String("forum_role", user.ForumRole),
		logger.String("status", string(user.Status)),
		logger.Int64("by", actor.ID))
	s.bus.Publish(ctx, event.Event{Type: event.UserChanged, UserID: uid, Status: string(user.Status)})
	return s.toDTO(user, true), nil
}

func (s *UserService) toDTO(u *model.User, withEmail bool) *model.UserDTO {
	dto := &model.UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		SiteRole:  u.SiteRole,
		ForumRole: string(s.caps.ResolveRole(u)),
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
	if withEmail {
		dto.Email = u.Email
	}
	return dto
}

// GenerateJWT 生成登录令牌
func GenerateJWT(uid int64, cfg config.JWTConfig) (string, error) {
	claims := jwt.MapClaims{
		"uid": uid,
		"exp": time.Now().Add(time.Duration(cfg.Expiry) * time.Second).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseJWT verifies a login token and returns its user id.
func ParseJWT(tokenString string, cfg config.JWTConfig) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}
	uid, ok := claims["uid"].(float64)
	if !ok {
		return 0, errors.New("invalid uid claim")
	}
	return int64(uid), nil
}
