// Package source resolves archive locations. Plain paths are local files;
// s3://bucket/key locations are fetched from S3-compatible storage.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"embedview/internal/config"
	"embedview/internal/version"
)

// SchemeS3 prefixes object storage locations.
const SchemeS3 = "s3://"

// Location is a parsed archive location.
type Location struct {
	// Path is set for local files.
	Path string
	// Bucket and Key are set for object storage.
	Bucket string
	Key    string
}

// IsRemote reports whether the location lives in object storage.
func (l Location) IsRemote() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsRemote() {
		return SchemeS3 + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation splits s into a local path or an s3 bucket and key.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("empty archive location")
	}
	if !strings.HasPrefix(s, SchemeS3) {
		return Location{Path: s}, nil
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(s, SchemeS3), "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q (want s3://bucket/key)", s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// Open returns a reader for the archive at location.
func Open(ctx context.Context, location string, storage config.StorageConfig) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if !loc.IsRemote() {
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		return f, nil
	}

	client, err := newClient(storage)
	if err != nil {
		return nil, err
	}
	obj, err := client.GetObject(ctx, loc.Bucket, loc.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", loc, err)
	}
	// GetObject is lazy; Stat surfaces missing objects and bad credentials.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to get object %s: %w", loc, err)
	}
	return obj, nil
}

// Publish places the local file at localPath at location. Local
// destinations are renamed into place; s3 destinations are uploaded and
// the local file is left as is.
func Publish(ctx context.Context, localPath, location string, storage config.StorageConfig) error {
	loc, err := ParseLocation(location)
	if err != nil {
		return err
	}
	if !loc.IsRemote() {
		if loc.Path == localPath {
			return nil
		}
		return os.Rename(localPath, loc.Path)
	}

	client, err := newClient(storage)
	if err != nil {
		return err
	}
	_, err = client.FPutObject(ctx, loc.Bucket, loc.Key, localPath, minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", loc, err)
	}
	return nil
}

func newClient(storage config.StorageConfig) (*minio.Client, error) {
	if storage.Endpoint == "" {
		return nil, fmt.Errorf("storage.endpoint is not configured; s3:// locations need it")
	}
	client, err := minio.New(storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(storage.AccessKeyID, storage.SecretAccessKey, ""),
		Secure: storage.UseSSL,
		Region: storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	client.SetAppInfo(version.AppName, version.Info())
	return client, nil
}
