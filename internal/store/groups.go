package store

import (
	"context"

	"yatube/internal/models"
)

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	return translate(s.db.WithContext(ctx).Create(group).Error, "creating group")
}

func (s *Store) GroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error
	if err != nil {
		return nil, translate(err, "getting group by slug")
	}
	return &group, nil
}

func (s *Store) GroupByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).First(&group, id).Error
	if err != nil {
		return nil, translate(err, "getting group by id")
	}
	return &group, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).Order("title ASC").Find(&groups).Error
	return groups, translate(err, "listing groups")
}
