// Package follow manages the directed follow graph between users.
package follow

import (
	"context"

	"github.com/sirupsen/logrus"

	"yatube/internal/events"
	"yatube/internal/metrics"
	"yatube/internal/models"
)

type Graph interface {
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateFollow(ctx context.Context, userID, authorID uint) (bool, error)
	DeleteFollow(ctx context.Context, userID, authorID uint) (bool, error)
	FollowExists(ctx context.Context, userID, authorID uint) (bool, error)
	CountFollowers(ctx context.Context, authorID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
}

type Manager struct {
	graph   Graph
	events  events.Publisher
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewManager(graph Graph, pub events.Publisher, m *metrics.Metrics, log logrus.FieldLogger) *Manager {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Manager{graph: graph, events: pub, metrics: m, log: log}
}

// Counts is what a profile page shows about an author's graph.
type Counts struct {
	Followers int64
	Following int64
}

// Author looks up the user at the other end of a follow edge.
func (m *Manager) Author(ctx context.Context, username string) (*models.User, error) {
	return m.graph.UserByUsername(ctx, username)
}

// Follow makes user follow the author named authorUsername. Following
// yourself or an author you already follow is a no-op. An unknown author is
// store.ErrNotFound.
func (m *Manager) Follow(ctx context.Context, user *models.User, authorUsername string) (*models.User, error) {
	author, err := m.graph.UserByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}
	if author.ID == user.ID {
		return author, nil
	}

	created, err := m.graph.CreateFollow(ctx, user.ID, author.ID)
	if err != nil {
		return nil, err
	}
	if created {
		m.log.WithFields(logrus.Fields{"user": user.Username, "author": author.Username}).Info("User followed successfully")
		if m.metrics != nil {
			m.metrics.FollowRequests.Inc()
		}
		m.publish(ctx, events.SubjectFollowCreated, user, author)
	}
	return author, nil
}

// Unfollow removes the edge from user to the author if there is one.
func (m *Manager) Unfollow(ctx context.Context, user *models.User, authorUsername string) (*models.User, error) {
	author, err := m.graph.UserByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}

	removed, err := m.graph.DeleteFollow(ctx, user.ID, author.ID)
	if err != nil {
		return nil, err
	}
	if removed {
		m.log.WithFields(logrus.Fields{"user": user.Username, "author": author.Username}).Info("User unfollowed successfully")
		if m.metrics != nil {
			m.metrics.UnfollowRequests.Inc()
		}
		m.publish(ctx, events.SubjectFollowDeleted, user, author)
	}
	return author, nil
}

// IsFollowing reports whether user follows author. A nil user follows nobody.
func (m *Manager) IsFollowing(ctx context.Context, user, author *models.User) (bool, error) {
	if user == nil || author == nil || user.ID == author.ID {
		return false, nil
	}
	return m.graph.FollowExists(ctx, user.ID, author.ID)
}

func (m *Manager) Counts(ctx context.Context, u *models.User) (Counts, error) {
	followers, err := m.graph.CountFollowers(ctx, u.ID)
	if err != nil {
		return Counts{}, err
	}
	following, err := m.graph.CountFollowing(ctx, u.ID)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Followers: followers, Following: following}, nil
}

func (m *Manager) publish(ctx context.Context, subject string, user, author *models.User) {
	err := m.events.Publish(ctx, subject, events.FollowEvent{User: user.Username, Author: author.Username})
	if err != nil {
		m.log.WithError(err).WithField("subject", subject).Warn("Failed to publish follow event")
	}
}
