// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"yatube/internal/config"
	"yatube/internal/logging"
	"yatube/internal/models"
	"yatube/internal/store"
)

// New returns a migrated store backed by a private in-memory SQLite database.
func New(t testing.TB) *store.Store {
	t.Helper()

	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(config.DatabaseConfig{Path: path}, logging.Discard())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to a memory database would otherwise see its own copy
	sqlDB.SetMaxOpenConns(1)

	s := store.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// User inserts a user whose password is "password".
func User(t testing.TB, s *store.Store, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{Username: username, Email: username + "@example.com", PWHash: string(hash)}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func Group(t testing.TB, s *store.Store, slug string) *models.Group {
	t.Helper()

	g := &models.Group{Title: "Group " + slug, Slug: slug, Description: "about " + slug}
	require.NoError(t, s.CreateGroup(context.Background(), g))
	return g
}
