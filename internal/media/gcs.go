package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GCSStore keeps images in a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	BucketName string
}

func NewGCSStore(ctx context.Context, bucketName, credentialsPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsPath)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCS storage client")
	}
	return &GCSStore{client: client, BucketName: bucketName}, nil
}

func (s *GCSStore) Save(ctx context.Context, data []byte, format string) (string, error) {
	name := newName(format)

	writer := s.client.Bucket(s.BucketName).Object(name).NewWriter(ctx)
	writer.ContentType = contentType(format)

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", errors.Wrapf(err, "failed to upload %s to GCS", name)
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close GCS writer for %s", name)
	}
	return name, nil
}

func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.client.Bucket(s.BucketName).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(err, "failed to delete %s from GCS", name)
	}
	return nil
}

func (s *GCSStore) URL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.BucketName, name)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
