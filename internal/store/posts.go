package store

import (
	"context"

	"gorm.io/gorm"

	"yatube/internal/models"
)

// PostFilter narrows a post listing. Zero fields are ignored; ids start at 1.
type PostFilter struct {
	AuthorID uint
	GroupID  uint
	// FollowerID selects posts by every author this user follows.
	FollowerID uint
}

const commentCountColumn = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"

func (s *Store) filteredPosts(ctx context.Context, f PostFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Post{})
	if f.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.GroupID != 0 {
		q = q.Where("posts.group_id = ?", f.GroupID)
	}
	if f.FollowerID != 0 {
		followed := s.db.WithContext(ctx).
			Model(&models.Follow{}).
			Select("author_id").
			Where("user_id = ?", f.FollowerID)
		q = q.Where("posts.author_id IN (?)", followed)
	}
	return q
}

func (s *Store) CountPosts(ctx context.Context, f PostFilter) (int64, error) {
	var n int64
	err := s.filteredPosts(ctx, f).Count(&n).Error
	return n, translate(err, "counting posts")
}

// ListPosts returns a window of matching posts, newest first. Posts sharing a
// pub_date keep insertion order through the id tie-break.
func (s *Store) ListPosts(ctx context.Context, f PostFilter, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.filteredPosts(ctx, f).
		Select("posts.*, " + commentCountColumn).
		Preload("Author").
		Preload("Group").
		Order("posts.pub_date DESC").
		Order("posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "listing posts")
	}
	return posts, nil
}

func (s *Store) PostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*, "+commentCountColumn).
		Preload("Author").
		Preload("Group").
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, translate(err, "getting post")
	}
	return &post, nil
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	return translate(s.db.WithContext(ctx).Omit("Author", "Group").Create(post).Error, "creating post")
}

// UpdatePost writes the mutable columns only; author and pub_date are never touched.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	res := s.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Select("Text", "GroupID", "Image").
		Updates(map[string]interface{}{
			"Text":    post.Text,
			"GroupID": post.GroupID,
			"Image":   post.Image,
		})
	if res.Error != nil {
		return translate(res.Error, "updating post")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes the post together with its comments.
func (s *Store) DeletePost(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return translate(err, "deleting comments")
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return translate(res.Error, "deleting post")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
