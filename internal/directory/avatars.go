package directory

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AvatarStore resolves avatar object keys to presigned URLs on the blob
// store.
type AvatarStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewAvatarStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*AvatarStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}
	return &AvatarStore{client: client, bucket: bucket, expiry: 15 * time.Minute}, nil
}

// URL returns a presigned GET URL for the avatar object, or "" for an empty
// key.
func (s *AvatarStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign avatar %s: %w", key, err)
	}
	return presigned.String(), nil
}
