package store

import (
	"context"

	"yatube/internal/models"
)

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	return translate(s.db.WithContext(ctx).Omit("Author").Create(comment).Error, "creating comment")
}

// ListComments returns the comments on a post, oldest first.
func (s *Store) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, translate(err, "listing comments")
}
