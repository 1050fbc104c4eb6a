package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repos bundles every repository bound to one executor, either the pool or
// an open transaction.
type Repos struct {
	Forums    ForumRepository
	Topics    TopicRepository
	Replies   ReplyRepository
	Revisions RevisionRepository
	Users     UserRepository
	Tags      TagRepository
	TopicTags TopicTagRepository
}

// NewRepos binds all repositories to ext
func NewRepos(ext sqlx.ExtContext) *Repos {
	return &Repos{
		Forums:    NewForumRepository(ext),
		Topics:    NewTopicRepository(ext),
		Replies:   NewReplyRepository(ext),
		Revisions: NewRevisionRepository(ext),
		Users:     NewUserRepository(ext),
		Tags:      NewTagRepository(ext),
		TopicTags: NewTopicTagRepository(ext),
	}
}

// Store owns the connection pool and hands out repositories.
type Store struct {
	db    *sqlx.DB
	repos *Repos
}

// NewStore 创建 Store
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, repos: NewRepos(db)}
}

// Repos returns repositories running outside any transaction
func (s *Store) Repos() *Repos {
	return s.repos
}

// DB 底层连接
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn in a single transaction. Any error, or a panic, rolls the
// whole unit back; every repository call inside fn must go through r.
func (s *Store) WithTx(ctx context.Context, fn func(r *Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(NewRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// in expands IN clauses for the executor's bindvar style.
func in(ext sqlx.ExtContext, query string, args ...any) (string, []any, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return ext.Rebind(q), a, nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
