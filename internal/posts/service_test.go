package posts_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatube/internal/feed"
	"yatube/internal/logging"
	"yatube/internal/media"
	"yatube/internal/media/mediatest"
	"yatube/internal/metrics"
	"yatube/internal/models"
	"yatube/internal/posts"
	"yatube/internal/store"
	"yatube/internal/store/storetest"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *posts.Service
	store   *store.Store
	root    string
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	s := storetest.New(t)
	root := t.TempDir()
	m := metrics.InitMetrics(prometheus.NewRegistry())
	composer := feed.NewComposer(s, nil, logging.Discard())
	svc := posts.NewService(s, media.NewLocalStore(root), composer, nil, m, logging.Discard())
	svc.Now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, store: s, root: root, metrics: m}
}

func (f *fixture) postCount(t *testing.T) int64 {
	n, err := f.store.CountPosts(context.Background(), store.PostFilter{})
	require.NoError(t, err)
	return n
}

func (f *fixture) storedFiles(t *testing.T) []string {
	var files []string
	err := filepath.Walk(f.root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return err
	})
	require.NoError(t, err)
	return files
}

func pngUpload(t *testing.T) *posts.Upload {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return &posts.Upload{Filename: "pic.png", Data: buf.Bytes()}
}

func validationFields(t *testing.T, err error) map[string][]string {
	var verr *posts.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := storetest.User(t, f.store, "makson")
	g := storetest.Group(t, f.store, "cats")

	post, err := f.svc.CreatePost(ctx, u, posts.PostForm{
		Text:    "  My new post  ",
		GroupID: strconv.Itoa(int(g.ID)),
		Image:   pngUpload(t),
	})
	require.NoError(t, err)

	got, err := f.store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "My new post", got.Text)
	assert.Equal(t, u.ID, got.AuthorID)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, g.ID, *got.GroupID)
	assert.True(t, fixedNow.Equal(got.PubDate.UTC()))
	assert.NotEmpty(t, got.Image)
	assert.Len(t, f.storedFiles(t), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PostsCreated))
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := storetest.User(t, f.store, "makson")

	_, err := f.svc.CreatePost(ctx, u, posts.PostForm{Text: "   "})
	assert.Contains(t, validationFields(t, err), "text")

	_, err = f.svc.CreatePost(ctx, u, posts.PostForm{Text: "ok", GroupID: "42"})
	assert.Contains(t, validationFields(t, err), "group")

	_, err = f.svc.CreatePost(ctx, u, posts.PostForm{Text: "ok", GroupID: "cats"})
	assert.Contains(t, validationFields(t, err), "group")

	assert.Zero(t, f.postCount(t))
}

func TestCreatePostRejectsNonImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := storetest.User(t, f.store, "makson")

	_, err := f.svc.CreatePost(ctx, u, posts.PostForm{
		Text:  "with a text file",
		Image: &posts.Upload{Filename: "notes.txt", Data: []byte("definitely not an image")},
	})
	assert.Contains(t, validationFields(t, err), "image")
	assert.Zero(t, f.postCount(t))
	assert.Empty(t, f.storedFiles(t))
}

func TestCreatePostRejectsHugeDimensions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := storetest.User(t, f.store, "makson")

	_, err := f.svc.CreatePost(ctx, u, posts.PostForm{
		Text:  "a very large picture",
		Image: &posts.Upload{Filename: "huge.png", Data: mediatest.PNGHeader(20000, 20000)},
	})
	assert.Equal(t, []string{posts.MsgImageTooBig}, validationFields(t, err)["image"])
	assert.Zero(t, f.postCount(t))
	assert.Empty(t, f.storedFiles(t))
}

func TestCreatePostAnonymous(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreatePost(context.Background(), nil, posts.PostForm{Text: "hi"})
	assert.ErrorIs(t, err, posts.ErrAnonymous)
}

func TestEditPostAsOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := storetest.User(t, f.store, "makson")

	post, err := f.svc.CreatePost(ctx, u, posts.PostForm{Text: "My new post", Image: pngUpload(t)})
	require.NoError(t, err)
	oldImage := post.Image

	f.svc.Now = func() time.Time { return fixedNow.Add(48 * time.Hour) }

	edited, err := f.svc.EditPost(ctx, u, "makson", post.ID, posts.PostForm{Text: "My new post(refactor)!"})
	require.NoError(t, err)
	assert.Equal(t, post.ID, edited.ID)

	got, err := f.store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "My new post(refactor)!", got.Text)
	assert.True(t, fixedNow.Equal(got.PubDate.UTC()))
	assert.Equal(t, u.ID, got.AuthorID)
	assert.Equal(t, oldImage, got.Image, "no new upload keeps the stored image")

	_, err = f.svc.EditPost(ctx, u, "makson", post.ID, posts.PostForm{Text: "new picture", Image: pngUpload(t)})
	require.NoError(t, err)
	got, err = f.store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldImage, got.Image)
	assert.Len(t, f.storedFiles(t), 1, "replaced image is removed")

	_, err = f.svc.EditPost(ctx, u, "makson", post.ID, posts.PostForm{Text: "no picture", ClearImage: true})
	require.NoError(t, err)
	got, err = f.store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Image)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.PostsEdited))
}

func TestEditPostAsNonOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := storetest.User(t, f.store, "makson")
	other := storetest.User(t, f.store, "intruder")

	post, err := f.svc.CreatePost(ctx, owner, posts.PostForm{Text: "original"})
	require.NoError(t, err)

	_, err = f.svc.EditPost(ctx, other, "makson", post.ID, posts.PostForm{Text: "hacked"})
	assert.ErrorIs(t, err, posts.ErrNotOwner)

	_, err = f.svc.EditPost(ctx, nil, "makson", post.ID, posts.PostForm{Text: "hacked"})
	assert.ErrorIs(t, err, posts.ErrAnonymous)

	got, err := f.store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text)
}

func TestEditPostWrongAuthorInPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := storetest.User(t, f.store, "makson")
	storetest.User(t, f.store, "other")

	post, err := f.svc.CreatePost(ctx, owner, posts.PostForm{Text: "original"})
	require.NoError(t, err)

	_, err = f.svc.EditPost(ctx, owner, "other", post.ID, posts.PostForm{Text: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.EditPost(ctx, owner, "makson", post.ID+100, posts.PostForm{Text: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEditPostInvalidKeepsStoredText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := storetest.User(t, f.store, "makson")

	post, err := f.svc.CreatePost(ctx, u, posts.PostForm{Text: "original"})
	require.NoError(t, err)

	_, err = f.svc.EditPost(ctx, u, "makson", post.ID, posts.PostForm{Text: ""})
	assert.Contains(t, validationFields(t, err), "text")

	got, err := f.store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text)
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := storetest.User(t, f.store, "makson")
	reader := storetest.User(t, f.store, "reader")

	post, err := f.svc.CreatePost(ctx, author, posts.PostForm{Text: "post"})
	require.NoError(t, err)

	c, err := f.svc.AddComment(ctx, reader, "makson", post.ID, posts.CommentForm{Text: "nice post"})
	require.NoError(t, err)
	assert.Equal(t, reader.ID, c.AuthorID)
	assert.True(t, fixedNow.Equal(c.Created))

	_, comments, err := f.svc.Post(ctx, "makson", post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice post", comments[0].Text)
	assert.Equal(t, "reader", comments[0].Author.Username)

	_, err = f.svc.AddComment(ctx, reader, "makson", post.ID, posts.CommentForm{Text: " "})
	assert.Contains(t, validationFields(t, err), "text")

	_, err = f.svc.AddComment(ctx, reader, "makson", post.ID+1, posts.CommentForm{Text: "hi"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.AddComment(ctx, nil, "makson", post.ID, posts.CommentForm{Text: "hi"})
	assert.ErrorIs(t, err, posts.ErrAnonymous)
}

func TestPostLookupChecksAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := storetest.User(t, f.store, "makson")
	storetest.User(t, f.store, "other")

	post, err := f.svc.CreatePost(ctx, author, posts.PostForm{Text: "post"})
	require.NoError(t, err)

	_, _, err = f.svc.Post(ctx, "other", post.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var p *models.Post
	p, _, err = f.svc.Post(ctx, "makson", post.ID)
	require.NoError(t, err)
	assert.Equal(t, "post", p.Text)
}
