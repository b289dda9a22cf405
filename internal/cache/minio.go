package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"schemap/internal/errs"
)

// ObjectConfig holds the settings for the object-storage snapshot archive.
type ObjectConfig struct {
	Endpoint  string `yaml:"endpoint"` // host:port, e.g. "localhost:9000"
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// ObjectArchive persists snapshots as JSON objects in a MinIO (or any
// S3-compatible) bucket, one object per connection name.
// It is safe for concurrent use by multiple goroutines.
type ObjectArchive struct {
	client *miniogo.Client
	bucket string
}

// NewObjectArchive connects to the object store and verifies the configured
// bucket exists before returning.
func NewObjectArchive(ctx context.Context, cfg *ObjectConfig) (*ObjectArchive, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create object store client", err)
	}

	a := &ObjectArchive{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, mapObjectError(err, "failed to check snapshot bucket")
	}
	if !exists {
		return nil, errs.New(errs.ErrKindNotFound, "snapshot bucket does not exist: "+cfg.Bucket)
	}
	return a, nil
}

// --- Archive implementation ---

// Save writes the snapshot as a JSON object keyed by connection name.
func (a *ObjectArchive) Save(ctx context.Context, name string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode snapshot", err)
	}

	_, err = a.client.PutObject(ctx, a.bucket, objectKey(name),
		bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return mapObjectError(err, "failed to store snapshot")
	}
	return nil
}

// Load reads and decodes the snapshot object for the named connection.
func (a *ObjectArchive) Load(ctx context.Context, name string) (*Snapshot, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(name), miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectError(err, "failed to fetch snapshot")
	}
	defer obj.Close()

	var snap Snapshot
	if err := json.NewDecoder(obj).Decode(&snap); err != nil {
		// GetObject defers most S3 errors until the first read.
		return nil, mapObjectError(err, "failed to read snapshot")
	}
	return &snap, nil
}

func objectKey(name string) string {
	return "snapshots/" + name + ".json"
}

// mapObjectError translates a MinIO SDK error into a *errs.Error.
// It mirrors the mapError pattern used in the postgres and mysql drivers.
func mapObjectError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}

		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
