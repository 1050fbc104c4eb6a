package model

// SiteRole the account-level role, independent of the forum role
type SiteRole string

const (
	SiteAdministrator SiteRole = "administrator"
	SiteEditor        SiteRole = "editor"
	SiteAuthor        SiteRole = "author"
	SiteContributor   SiteRole = "contributor"
	SiteSubscriber    SiteRole = "subscriber"
)

// UserStatus 用户状态
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserSpam    UserStatus = "spam"
	UserDeleted UserStatus = "deleted"
)

// User 用户模型
type User struct {
	ID        int64      `db:"id"`
	Username  string     `db:"username"`
	Password  string     `db:"password"`
	Email     string     `db:"email"`
	SiteRole  SiteRole   `db:"site_role"`
	ForumRole string     `db:"forum_role"` // explicit assignment, "" when unset
	Status    UserStatus `db:"status"`
	CreatedAt int64      `db:"created_at"`
	LastVisit int64      `db:"last_visit"`
}

// IsInactive spam or deleted accounts may read but never participate
func (u *User) IsInactive() bool {
	return u.Status == UserSpam || u.Status == UserDeleted
}

// UserDTO 用户数据传输对象
type UserDTO struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	SiteRole  SiteRole   `json:"site_role"`
	ForumRole string     `json:"forum_role"`
	Status    UserStatus `json:"status"`
	CreatedAt int64      `json:"created_at"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=32"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=32"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}
