package repository

import (
	"context"

	"barebones/internal/model"

	"github.com/jmoiron/sqlx"
)

// RevisionRepository 编辑记录
type RevisionRepository interface {
	Create(ctx context.Context, rev *model.Revision) error
	ListByPost(ctx context.Context, postType model.PostType, postID int64) ([]*model.Revision, error)
	DeleteByPost(ctx context.Context, postType model.PostType, postID int64) error
}

type revisionRepository struct {
	db sqlx.ExtContext
}

// NewRevisionRepository 创建 RevisionRepository 实例
func NewRevisionRepository(db sqlx.ExtContext) RevisionRepository {
	return &revisionRepository{db: db}
}

func (r *revisionRepository) Create(ctx context.Context, rev *model.Revision) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO bb_revisions (id, post_id, post_type, author_id, reason, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rev.ID, rev.PostID, rev.PostType, rev.AuthorID, rev.Reason, rev.Content, rev.CreatedAt)
	return err
}

// ListByPost newest first
func (r *revisionRepository) ListByPost(ctx context.Context, postType model.PostType, postID int64) ([]*model.Revision, error) {
	var revs []*model.Revision
	err := sqlx.SelectContext(ctx, r.db, &revs,
		`SELECT id, post_id, post_type, author_id, reason, content, created_at FROM bb_revisions
		WHERE post_type = ? AND post_id = ? ORDER BY id DESC`, postType, postID)
	if err != nil {
		return nil, err
	}
	return revs, nil
}

func (r *revisionRepository) DeleteByPost(ctx context.Context, postType model.PostType, postID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bb_revisions WHERE post_type = ? AND post_id = ?", postType, postID)
	return err
}
