package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"yatube/internal/auth"
	"yatube/internal/feed"
	"yatube/internal/forms"
	"yatube/internal/media"
	"yatube/internal/models"
	"yatube/internal/posts"
	"yatube/internal/store"
)

const (
	maxRequestBytes = media.MaxUploadBytes + 1<<20
	multipartMemory = 32 << 20
)

type GroupLister interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
}

func pageParam(r *http.Request) int {
	return feed.ParsePage(r.URL.Query().Get("page"))
}

func postParams(r *http.Request) (string, uint, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["post_id"], 10, 64)
	if err != nil {
		return "", 0, store.ErrNotFound
	}
	return vars["username"], uint(id), nil
}

func postURL(username string, id uint) string {
	return fmt.Sprintf("/%s/%d/", username, id)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page, err := s.feed.Global(r.Context(), pageParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, "index.html", http.StatusOK, &pageData{Title: "Latest updates", Page: page})
}

func (s *Server) groupPosts(w http.ResponseWriter, r *http.Request) {
	group, page, err := s.feed.Group(r.Context(), mux.Vars(r)["slug"], pageParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, "group.html", http.StatusOK, &pageData{Title: group.Title, Group: group, Page: page})
}

func (s *Server) followIndex(w http.ResponseWriter, r *http.Request) {
	page, err := s.feed.Following(r.Context(), auth.Caller(r.Context()), pageParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, "follow.html", http.StatusOK, &pageData{Title: "Following", Page: page})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.feed.Profile(ctx, mux.Vars(r)["username"], pageParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	counts, err := s.follows.Counts(ctx, p.Author)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	following, err := s.follows.IsFollowing(ctx, auth.Caller(ctx), p.Author)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.render(w, r, "profile.html", http.StatusOK, &pageData{
		Title:     p.Author.Username,
		Author:    p.Author,
		PostCount: p.PostCount,
		Page:      p.Page,
		Counts:    counts,
		Following: following,
	})
}

func (s *Server) profileFollow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.confirmFollow(w, r, false)
		return
	}
	caller := auth.Caller(r.Context())
	author, err := s.follows.Follow(r.Context(), caller, mux.Vars(r)["username"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if author.ID != caller.ID {
		s.auth.Flash(w, r, "You are now following "+author.Username)
	}
	http.Redirect(w, r, "/"+author.Username+"/", http.StatusFound)
}

func (s *Server) profileUnfollow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.confirmFollow(w, r, true)
		return
	}
	caller := auth.Caller(r.Context())
	author, err := s.follows.Unfollow(r.Context(), caller, mux.Vars(r)["username"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if author.ID != caller.ID {
		s.auth.Flash(w, r, "You are no longer following "+author.Username)
	}
	http.Redirect(w, r, "/"+author.Username+"/", http.StatusFound)
}

// confirmFollow answers GET on the follow routes with a form that posts the
// change. The graph is only edited by POST.
func (s *Server) confirmFollow(w http.ResponseWriter, r *http.Request, unfollow bool) {
	author, err := s.follows.Author(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if author.ID == auth.Caller(r.Context()).ID {
		http.Redirect(w, r, "/"+author.Username+"/", http.StatusFound)
		return
	}

	title := "Follow " + author.Username
	if unfollow {
		title = "Unfollow " + author.Username
	}
	s.render(w, r, "follow_confirm.html", http.StatusOK, &pageData{Title: title, Author: author, Unfollow: unfollow})
}

func (s *Server) postView(w http.ResponseWriter, r *http.Request) {
	username, id, err := postParams(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.showPost(w, r, username, id, nil, nil)
}

// showPost renders the read view, optionally with a rejected comment form.
func (s *Server) showPost(w http.ResponseWriter, r *http.Request, username string, id uint, form map[string]string, errs forms.Errors) {
	post, comments, err := s.posts.Post(r.Context(), username, id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, "post.html", http.StatusOK, &pageData{
		Title:    "Post by " + post.Author.Username,
		Post:     post,
		Comments: comments,
		CanEdit:  auth.Decide(auth.Caller(r.Context()), post.AuthorID) == auth.Owner,
		Form:     form,
		Errors:   errs,
	})
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	username, id, err := postParams(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if r.Method != http.MethodPost {
		http.Redirect(w, r, postURL(username, id), http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	form := posts.CommentForm{Text: r.PostFormValue("text")}
	_, err = s.posts.AddComment(r.Context(), auth.Caller(r.Context()), username, id, form)
	var verr *posts.ValidationError
	switch {
	case errors.As(err, &verr):
		s.showPost(w, r, username, id, map[string]string{"text": form.Text}, verr.Fields)
	case err != nil:
		s.handleError(w, r, err)
	default:
		http.Redirect(w, r, postURL(username, id), http.StatusFound)
	}
}

func (s *Server) newPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.renderPostForm(w, r, &pageData{Title: "New post"})
		return
	}

	form, err := readPostForm(r)
	if err != nil {
		s.rejectUpload(w, r, err, &pageData{Title: "New post"})
		return
	}

	_, err = s.posts.CreatePost(r.Context(), auth.Caller(r.Context()), form)
	var verr *posts.ValidationError
	switch {
	case errors.As(err, &verr):
		s.renderPostForm(w, r, &pageData{Title: "New post", Form: formValues(form), Errors: verr.Fields})
	case err != nil:
		s.handleError(w, r, err)
	default:
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func (s *Server) postEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := auth.Caller(ctx)
	username, id, err := postParams(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	post, err := s.posts.PostForEdit(ctx, caller, username, id)
	if errors.Is(err, posts.ErrNotOwner) {
		http.Redirect(w, r, postURL(username, id), http.StatusFound)
		return
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	data := &pageData{Title: "Edit post", Editing: true, Post: post}
	if r.Method != http.MethodPost {
		data.Form = map[string]string{"text": post.Text}
		if post.GroupID != nil {
			data.Form["group"] = strconv.FormatUint(uint64(*post.GroupID), 10)
		}
		s.renderPostForm(w, r, data)
		return
	}

	form, err := readPostForm(r)
	if err != nil {
		s.rejectUpload(w, r, err, data)
		return
	}

	_, err = s.posts.EditPost(ctx, caller, username, id, form)
	var verr *posts.ValidationError
	switch {
	case errors.As(err, &verr):
		data.Form = formValues(form)
		data.Errors = verr.Fields
		s.renderPostForm(w, r, data)
	case errors.Is(err, posts.ErrNotOwner):
		http.Redirect(w, r, postURL(username, id), http.StatusFound)
	case err != nil:
		s.handleError(w, r, err)
	default:
		http.Redirect(w, r, postURL(username, id), http.StatusFound)
	}
}

func (s *Server) renderPostForm(w http.ResponseWriter, r *http.Request, data *pageData) {
	groups, err := s.groups.ListGroups(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	data.Groups = groups
	s.render(w, r, "new_post.html", http.StatusOK, data)
}

// rejectUpload answers a post form whose body could not be read.
func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, err error, data *pageData) {
	if !bodyTooLarge(err) {
		s.log.WithError(err).Warn("Failed to parse post form")
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	data.Errors = forms.Errors{}
	data.Errors.Add("image", posts.MsgImageTooBig)
	s.renderPostForm(w, r, data)
}

func bodyTooLarge(err error) bool {
	var tooBig *http.MaxBytesError
	return errors.As(err, &tooBig) || (err != nil && strings.Contains(err.Error(), "request body too large"))
}

// readPostForm reads a post form from a body already capped by protect.
func readPostForm(r *http.Request) (posts.PostForm, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return posts.PostForm{}, err
	}

	form := posts.PostForm{
		Text:       r.PostFormValue("text"),
		GroupID:    r.PostFormValue("group"),
		ClearImage: r.PostFormValue("image-clear") != "",
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return form, nil
	case err != nil:
		return form, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return form, err
	}
	if len(data) > 0 {
		form.Image = &posts.Upload{Filename: header.Filename, Data: data}
	}
	return form, nil
}

func formValues(f posts.PostForm) map[string]string {
	return map[string]string{"text": f.Text, "group": f.GroupID}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	data := &pageData{Title: "Log in", Next: r.URL.Query().Get("next")}
	if r.Method != http.MethodPost {
		s.render(w, r, "login.html", http.StatusOK, data)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	data.Next = r.PostFormValue("next")
	data.Form = map[string]string{"username": username}

	user, err := s.auth.Authenticate(r.Context(), username, r.PostFormValue("password"))
	switch {
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		s.log.WithField("username", username).Info("Login failed")
		data.Errors = forms.Errors{}
		data.Errors.Add("__all__", err.Error())
		s.render(w, r, "login.html", http.StatusOK, data)
		return
	case err != nil:
		s.handleError(w, r, err)
		return
	}

	if err := s.auth.Login(w, r, user); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.log.WithField("username", user.Username).Info("User logged in successfully")
	http.Redirect(w, r, auth.SafeNext(data.Next), http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(w, r); err != nil {
		s.handleError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	data := &pageData{Title: "Sign up"}
	if r.Method != http.MethodPost {
		s.render(w, r, "signup.html", http.StatusOK, data)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	form := auth.SignupForm{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
	}
	_, err := s.auth.Register(r.Context(), form)
	var ferr *auth.FormError
	switch {
	case errors.As(err, &ferr):
		data.Form = map[string]string{"username": form.Username, "email": form.Email}
		data.Errors = ferr.Fields
		s.render(w, r, "signup.html", http.StatusOK, data)
	case err != nil:
		s.handleError(w, r, err)
	default:
		s.auth.Flash(w, r, "You were successfully registered and can login now")
		http.Redirect(w, r, auth.LoginPath, http.StatusFound)
	}
}
