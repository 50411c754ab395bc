// Package posts creates and edits posts and comments on behalf of an
// explicit caller.
package posts

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"yatube/internal/events"
	"yatube/internal/forms"
	"yatube/internal/media"
	"yatube/internal/metrics"
	"yatube/internal/models"
	"yatube/internal/store"
)

var (
	ErrAnonymous = errors.New("authentication required")
	ErrNotOwner  = errors.New("only the author may edit this post")
)

const (
	msgInvalidGroup = "Select a valid choice. That choice is not one of the available choices."
	msgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	MsgImageTooBig  = "The uploaded image is too large."
)

// ValidationError carries per-field messages; nothing was persisted.
type ValidationError struct {
	Fields forms.Errors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, field+": "+strings.Join(msgs, " "))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

type Upload struct {
	Filename string
	Data     []byte
}

// PostForm is a submitted post. GroupID is the raw select value, empty for
// no group. On edit, a nil Image keeps the stored one unless ClearImage is set.
type PostForm struct {
	Text       string `validate:"notblank"`
	GroupID    string
	Image      *Upload
	ClearImage bool
}

type CommentForm struct {
	Text string `validate:"notblank"`
}

type Store interface {
	GroupByID(ctx context.Context, id uint) (*models.Group, error)
	PostByID(ctx context.Context, id uint) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID uint) ([]models.Comment, error)
}

// FeedInvalidator is told whenever the global feed changes.
type FeedInvalidator interface {
	InvalidateGlobal(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateGlobal(context.Context) {}

type Service struct {
	store   Store
	images  media.Store
	feed    FeedInvalidator
	events  events.Publisher
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	Now func() time.Time
}

func NewService(st Store, images media.Store, feed FeedInvalidator, pub events.Publisher, m *metrics.Metrics, log logrus.FieldLogger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if feed == nil {
		feed = nopInvalidator{}
	}
	return &Service{
		store:   st,
		images:  images,
		feed:    feed,
		events:  pub,
		metrics: m,
		log:     log,
		Now:     time.Now,
	}
}

type cleanPost struct {
	text        string
	groupID     *uint
	image       *Upload
	imageFormat string
}

func (s *Service) clean(ctx context.Context, form PostForm) (*cleanPost, error) {
	errs := forms.Check(form, map[string]string{"Text": "text"}, nil)
	out := &cleanPost{text: strings.TrimSpace(form.Text)}

	if raw := strings.TrimSpace(form.GroupID); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errs.Add("group", msgInvalidGroup)
		} else {
			group, err := s.store.GroupByID(ctx, uint(id))
			switch {
			case errors.Is(err, store.ErrNotFound):
				errs.Add("group", msgInvalidGroup)
			case err != nil:
				return nil, err
			default:
				out.groupID = &group.ID
			}
		}
	}

	if form.Image != nil && len(form.Image.Data) > 0 {
		if len(form.Image.Data) > media.MaxUploadBytes {
			errs.Add("image", MsgImageTooBig)
		} else if format, err := media.DecodeImage(form.Image.Data); errors.Is(err, media.ErrImageTooLarge) {
			errs.Add("image", MsgImageTooBig)
		} else if err != nil {
			errs.Add("image", msgInvalidImage)
		} else {
			out.image = form.Image
			out.imageFormat = format
		}
	}

	if errs.Any() {
		return nil, &ValidationError{Fields: errs}
	}
	return out, nil
}

// CreatePost validates form and publishes it as caller. The image, if any,
// is stored only after the whole form validated.
func (s *Service) CreatePost(ctx context.Context, caller *models.User, form PostForm) (*models.Post, error) {
	if caller == nil {
		return nil, ErrAnonymous
	}

	c, err := s.clean(ctx, form)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Text:     c.text,
		PubDate:  s.Now(),
		AuthorID: caller.ID,
		GroupID:  c.groupID,
	}
	if c.image != nil {
		post.Image, err = s.images.Save(ctx, c.image.Data, c.imageFormat)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.CreatePost(ctx, post); err != nil {
		s.discardImage(ctx, post.Image)
		return nil, err
	}
	post.Author = *caller

	s.log.WithFields(logrus.Fields{"username": caller.Username, "post_id": post.ID}).Info("Post published successfully")
	if s.metrics != nil {
		s.metrics.PostsCreated.Inc()
	}
	s.feed.InvalidateGlobal(ctx)
	s.publishPost(ctx, events.SubjectPostCreated, post, caller)
	return post, nil
}

// Post returns the post with id written by username, with its comments.
func (s *Service) Post(ctx context.Context, username string, id uint) (*models.Post, []models.Comment, error) {
	post, err := s.postOf(ctx, username, id)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.store.ListComments(ctx, post.ID)
	if err != nil {
		return nil, nil, err
	}
	return post, comments, nil
}

func (s *Service) postOf(ctx context.Context, username string, id uint) (*models.Post, error) {
	post, err := s.store.PostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Author.Username != username {
		return nil, store.ErrNotFound
	}
	return post, nil
}

// PostForEdit loads a post for its edit form. Anyone but the author gets ErrNotOwner.
func (s *Service) PostForEdit(ctx context.Context, caller *models.User, username string, id uint) (*models.Post, error) {
	post, err := s.postOf(ctx, username, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, post); err != nil {
		return nil, err
	}
	return post, nil
}

func authorize(caller *models.User, post *models.Post) error {
	if caller == nil {
		return ErrAnonymous
	}
	if caller.ID != post.AuthorID {
		return ErrNotOwner
	}
	return nil
}

// EditPost replaces text, group and image of a post owned by caller.
// pub_date and author are left as they were.
func (s *Service) EditPost(ctx context.Context, caller *models.User, username string, id uint, form PostForm) (*models.Post, error) {
	post, err := s.PostForEdit(ctx, caller, username, id)
	if err != nil {
		return nil, err
	}

	c, err := s.clean(ctx, form)
	if err != nil {
		return nil, err
	}

	oldImage := post.Image
	post.Text = c.text
	post.GroupID = c.groupID
	post.Group = nil
	switch {
	case c.image != nil:
		post.Image, err = s.images.Save(ctx, c.image.Data, c.imageFormat)
		if err != nil {
			return nil, err
		}
	case form.ClearImage:
		post.Image = ""
	}

	if err := s.store.UpdatePost(ctx, post); err != nil {
		if post.Image != oldImage {
			s.discardImage(ctx, post.Image)
		}
		return nil, err
	}
	if oldImage != "" && post.Image != oldImage {
		s.discardImage(ctx, oldImage)
	}

	s.log.WithFields(logrus.Fields{"username": caller.Username, "post_id": post.ID}).Info("Post edited successfully")
	if s.metrics != nil {
		s.metrics.PostsEdited.Inc()
	}
	s.feed.InvalidateGlobal(ctx)
	s.publishPost(ctx, events.SubjectPostUpdated, post, caller)
	return post, nil
}

// AddComment attaches a comment by caller to the post id written by username.
func (s *Service) AddComment(ctx context.Context, caller *models.User, username string, id uint, form CommentForm) (*models.Comment, error) {
	if caller == nil {
		return nil, ErrAnonymous
	}

	post, err := s.postOf(ctx, username, id)
	if err != nil {
		return nil, err
	}

	if errs := forms.Check(form, map[string]string{"Text": "text"}, nil); errs.Any() {
		return nil, &ValidationError{Fields: errs}
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: caller.ID,
		Text:     strings.TrimSpace(form.Text),
		Created:  s.Now(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = *caller

	s.log.WithFields(logrus.Fields{"username": caller.Username, "post_id": post.ID}).Info("Comment added successfully")
	if s.metrics != nil {
		s.metrics.CommentsCreated.Inc()
	}
	s.feed.InvalidateGlobal(ctx)
	err = s.events.Publish(ctx, events.SubjectCommentCreated, events.CommentEvent{
		CommentID: comment.ID,
		PostID:    post.ID,
		Author:    caller.Username,
		Timestamp: comment.Created,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to publish comment event")
	}
	return comment, nil
}

func (s *Service) discardImage(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := s.images.Delete(ctx, name); err != nil {
		s.log.WithError(err).WithField("image", name).Warn("Failed to remove stored image")
	}
}

func (s *Service) publishPost(ctx context.Context, subject string, post *models.Post, author *models.User) {
	err := s.events.Publish(ctx, subject, events.PostEvent{
		PostID:    post.ID,
		Author:    author.Username,
		GroupID:   post.GroupID,
		HasImage:  post.Image != "",
		Timestamp: post.PubDate,
	})
	if err != nil {
		s.log.WithError(err).WithField("subject", subject).Warn("Failed to publish post event")
	}
}
