package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// GCSStore keeps staged documents in a bucket under a fixed prefix.
type GCSStore struct {
	client    *storage.Client
	bucket    string
	projectID string
	prefix    string
}

func NewGCSStore(client *storage.Client, bucket, projectID, prefix string) *GCSStore {
	return &GCSStore{
		client:    client,
		bucket:    bucket,
		projectID: projectID,
		prefix:    prefix,
	}
}

func (s *GCSStore) Ensure(ctx context.Context) error {
	handle := s.client.Bucket(s.bucket)
	_, err := handle.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("read bucket %s attrs failed: %w", s.bucket, err)
	}
	if s.projectID == "" {
		return fmt.Errorf("bucket %s does not exist and no project is configured to create it", s.bucket)
	}

	err = handle.Create(ctx, s.projectID, &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
	})
	if err != nil && !isStatus(err, http.StatusConflict) {
		return fmt.Errorf("create bucket %s failed: %w", s.bucket, err)
	}
	log.WithField("bucket", s.bucket).Info("created stage bucket")
	return nil
}

func (s *GCSStore) Put(ctx context.Context, data []byte, name string, overwrite, compress bool) (string, error) {
	payload, contentType, err := Encode(data, compress)
	if err != nil {
		return "", err
	}
	objectPath := ObjectPath(s.prefix, name, compress)

	obj := s.client.Bucket(s.bucket).Object(objectPath)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(payload)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s failed: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		if isStatus(err, http.StatusPreconditionFailed) {
			return "", fmt.Errorf("%w: %s", ErrObjectExists, objectPath)
		}
		return "", fmt.Errorf("close object %s failed: %w", objectPath, err)
	}
	return objectPath, nil
}

func (s *GCSStore) Delete(ctx context.Context, objectPath string) error {
	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s failed: %w", objectPath, err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
