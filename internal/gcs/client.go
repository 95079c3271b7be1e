package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

const publicHost = "https://storage.googleapis.com/"

// Client uploads objects to Cloud Storage.
type Client struct {
	gcs    *storage.Client
	logger *observability.Logger
}

func NewClient(ctx context.Context, logger *observability.Logger, opts ...option.ClientOption) (*Client, error) {
	gcs, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Client{gcs: gcs, logger: logger.WithField("component", "gcs")}, nil
}

// PublicURL is the address an object is served from once readable by all users.
func PublicURL(bucket, object string) string {
	return publicHost + bucket + "/" + object
}

// UploadPublic writes data to bucket/object, grants read access to all users
// and returns the public URL.
func (c *Client) UploadPublic(ctx context.Context, bucket, object, contentType string, data io.Reader) (string, error) {
	wrap := func(err error, message string) error {
		return errors.Wrap(err, errors.ErrCodeUploadFailed, message).
			WithContext("bucket", bucket).
			WithContext("object", object)
	}

	obj := c.gcs.Bucket(bucket).Object(object)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType

	written, err := io.Copy(wc, data)
	if err != nil {
		_ = wc.Close()
		return "", wrap(err, "Failed to write object")
	}
	if err := wc.Close(); err != nil {
		return "", wrap(err, "Failed to upload object")
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", wrap(err, "Failed to make object public")
	}

	url := PublicURL(bucket, object)
	c.logger.InfoWithFields("Uploaded public object", map[string]interface{}{
		"url":   url,
		"bytes": written,
	})
	return url, nil
}

func (c *Client) Close() error {
	return c.gcs.Close()
}
