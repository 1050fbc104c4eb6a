package repository

import (
	"context"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, uid int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateLastVisit(ctx context.Context, uid int64, timestamp int64) error
}

const userColumns = `id, username, password, email, site_role, forum_role, status, created_at, last_visit`

// NewUserRepository 创建用户仓库
func NewUserRepository(db sqlx.ExtContext) UserRepository {
	return &userRepository{db: db}
}

type userRepository struct {
	db sqlx.ExtContext
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO bb_users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Password, user.Email,
		user.SiteRole, user.ForumRole, user.Status, user.CreatedAt, user.LastVisit)
	return err
}

// GetByID 根据ID获取用户. Spam and deleted accounts are returned too so that
// roles can be downgraded rather than the user vanishing.
func (r *userRepository) GetByID(ctx context.Context, uid int64) (*model.User, error) {
	var user model.User
	err := sqlx.GetContext(ctx, r.db, &user, "SELECT "+userColumns+" FROM bb_users WHERE id = ?", uid)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername 根据用户名获取用户
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := sqlx.GetContext(ctx, r.db, &user, "SELECT "+userColumns+" FROM bb_users WHERE username = ?", username)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List 用户列表
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	var users []*model.User
	err := sqlx.SelectContext(ctx, r.db, &users,
		"SELECT "+userColumns+" FROM bb_users ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Update 更新用户
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE bb_users SET email = ?, site_role = ?, forum_role = ?, status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, user.Email, user.SiteRole, user.ForumRole, user.Status, user.ID)
	return err
}

// UpdateLastVisit 更新最后访问时间
func (r *userRepository) UpdateLastVisit(ctx context.Context, uid int64, timestamp int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bb_users SET last_visit = ? WHERE id = ?`, timestamp, uid)
	return err
}
