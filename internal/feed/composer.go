// Package feed builds the ordered, paginated post listings: the global feed,
// group feeds, author profiles and the personal "following" feed.
package feed

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"yatube/internal/models"
	"yatube/internal/store"
)

const (
	GlobalPageSize  = 10
	GroupPageSize   = 2
	ProfilePageSize = 5
	FollowPageSize  = 5
)

var ErrAnonymous = errors.New("following feed requires an authenticated caller")

// Source is the slice of the store the composer reads from.
type Source interface {
	CountPosts(ctx context.Context, f store.PostFilter) (int64, error)
	ListPosts(ctx context.Context, f store.PostFilter, offset, limit int) ([]models.Post, error)
	GroupBySlug(ctx context.Context, slug string) (*models.Group, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Cache holds global feed pages. Load reports the generation it looked in
// and Store writes under the generation it is given, so a page built before
// an Invalidate is never served after it. Implementations must treat their
// own failures as misses.
type Cache interface {
	Load(ctx context.Context, page int, dst any) (gen int64, ok bool)
	Store(ctx context.Context, gen int64, page int, v any)
	Invalidate(ctx context.Context)
}

type nopCache struct{}

func (nopCache) Load(context.Context, int, any) (int64, bool) { return -1, false }
func (nopCache) Store(context.Context, int64, int, any)       {}
func (nopCache) Invalidate(context.Context)                   {}

type Composer struct {
	src   Source
	cache Cache
	log   logrus.FieldLogger
}

// NewComposer wires a composer. A nil cache disables global feed caching.
func NewComposer(src Source, cache Cache, log logrus.FieldLogger) *Composer {
	if cache == nil {
		cache = nopCache{}
	}
	return &Composer{src: src, cache: cache, log: log}
}

// Profile is an author's feed plus their total number of posts.
type Profile struct {
	Author    *models.User
	PostCount int64
	Page      *Page
}

func (c *Composer) page(ctx context.Context, f store.PostFilter, size, requested int) (*Page, error) {
	count, err := c.src.CountPosts(ctx, f)
	if err != nil {
		return nil, err
	}

	number, numPages, offset := Window(count, size, requested)
	posts := []models.Post{}
	if count > 0 {
		posts, err = c.src.ListPosts(ctx, f, offset, size)
		if err != nil {
			return nil, err
		}
	}

	return &Page{
		Posts:    posts,
		Number:   number,
		NumPages: numPages,
		Count:    count,
		PerPage:  size,
	}, nil
}

// Global returns every post, newest first, ten per page. The requested number
// is clamped before the cache is consulted, so out of range requests share
// the last page's entry.
func (c *Composer) Global(ctx context.Context, requested int) (*Page, error) {
	count, err := c.src.CountPosts(ctx, store.PostFilter{})
	if err != nil {
		return nil, err
	}
	number, _, _ := Window(count, GlobalPageSize, requested)

	var cached Page
	gen, ok := c.cache.Load(ctx, number, &cached)
	if ok {
		return &cached, nil
	}

	p, err := c.page(ctx, store.PostFilter{}, GlobalPageSize, number)
	if err != nil {
		return nil, err
	}
	c.cache.Store(ctx, gen, p.Number, p)
	return p, nil
}

// InvalidateGlobal drops cached global feed pages.
func (c *Composer) InvalidateGlobal(ctx context.Context) {
	c.cache.Invalidate(ctx)
}

// Group returns the posts of the group with slug. An unknown slug is
// store.ErrNotFound, not an empty feed.
func (c *Composer) Group(ctx context.Context, slug string, requested int) (*models.Group, *Page, error) {
	group, err := c.src.GroupBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	p, err := c.page(ctx, store.PostFilter{GroupID: group.ID}, GroupPageSize, requested)
	if err != nil {
		return nil, nil, err
	}
	return group, p, nil
}

func (c *Composer) Profile(ctx context.Context, username string, requested int) (*Profile, error) {
	author, err := c.src.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := c.page(ctx, store.PostFilter{AuthorID: author.ID}, ProfilePageSize, requested)
	if err != nil {
		return nil, err
	}
	return &Profile{Author: author, PostCount: p.Count, Page: p}, nil
}

// Following returns posts by the authors caller follows. Following nobody
// yields an empty page.
func (c *Composer) Following(ctx context.Context, caller *models.User, requested int) (*Page, error) {
	if caller == nil {
		return nil, ErrAnonymous
	}
	return c.page(ctx, store.PostFilter{FollowerID: caller.ID}, FollowPageSize, requested)
}
