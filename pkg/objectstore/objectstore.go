// Package objectstore moves container images between the host and an S3
// bucket.
package objectstore

import (
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	. "github.com/weberc2/tidisk/pkg/types"
)

type ObjectStore interface {
	PutObject(bucket, key string, data io.ReadSeeker) error
	GetObject(bucket, key string) (io.ReadCloser, error)
	ListObjects(bucket, prefix string) ([]string, error)
	DeleteObject(bucket, key string) error
}

type ObjectNotFoundErr struct {
	Bucket string
	Key    string
}

func (err *ObjectNotFoundErr) Error() string {
	return fmt.Sprintf("object `s3://%s/%s` not found", err.Bucket, err.Key)
}

func (err *ObjectNotFoundErr) Unwrap() error { return NotFoundErr }

// Location names an object as `s3://bucket/key`.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string { return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key) }

const scheme = "s3://"

func ParseLocation(s string) (Location, error) {
	location, err := parse(s)
	if err != nil {
		return Location{}, err
	}
	if location.Key == "" {
		return Location{}, fmt.Errorf(
			"parsing object location `%s`: wanted `s3://bucket/key`: %w",
			s,
			InvalidNameErr,
		)
	}
	return location, nil
}

// ParsePrefix parses `s3://bucket` or `s3://bucket/prefix`; the key of the
// result is the prefix.
func ParsePrefix(s string) (Location, error) { return parse(s) }

func parse(s string) (Location, error) {
	rest, ok := strings.CutPrefix(s, scheme)
	if !ok {
		return Location{}, fmt.Errorf(
			"parsing object location `%s`: missing `%s` scheme: %w",
			s,
			scheme,
			InvalidNameErr,
		)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf(
			"parsing object location `%s`: missing bucket: %w",
			s,
			InvalidNameErr,
		)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// New opens an S3 object store. An empty region or endpoint leaves the AWS
// SDK defaults in place; a custom endpoint implies path-style addressing.
func New(region, endpoint string) (*S3ObjectStore, error) {
	config := aws.NewConfig()
	if region != "" {
		config = config.WithRegion(region)
	}
	if endpoint != "" {
		config = config.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return &S3ObjectStore{Client: s3.New(sess)}, nil
}
