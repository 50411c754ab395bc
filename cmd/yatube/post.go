package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"yatube/internal/feed"
	"yatube/internal/media"
	"yatube/internal/models"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Moderate posts",
}

var postDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a post with its comments and image",
	Args:    cobra.ExactArgs(1),
	RunE:    postDelete,
}

func init() {
	postCmd.AddCommand(postDeleteCmd)
	RootCmd.AddCommand(postCmd)
}

type postStore interface {
	PostByID(ctx context.Context, id uint) (*models.Post, error)
	DeletePost(ctx context.Context, id uint) error
}

// deletePost removes the post and then its image. A leftover image is only logged.
func deletePost(ctx context.Context, st postStore, images media.Store, composer *feed.Composer, log logrus.FieldLogger, id uint) (*models.Post, error) {
	post, err := st.PostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := st.DeletePost(ctx, id); err != nil {
		return nil, err
	}
	if post.Image != "" {
		if err := images.Delete(ctx, post.Image); err != nil {
			log.WithError(err).WithField("image", post.Image).Warn("Failed to remove stored image")
		}
	}
	composer.InvalidateGlobal(ctx)
	return post, nil
}

func postDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("invalid post id %q", args[0])
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	images, err := a.mediaStore(ctx)
	if err != nil {
		return err
	}
	composer := feed.NewComposer(a.store, a.feedCache(ctx), a.log)

	post, err := deletePost(ctx, a.store, images, composer, a.log, uint(id))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted post %d by %s\n", post.ID, post.Author.Username)
	return nil
}
