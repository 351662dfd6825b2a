package objectstore

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3ObjectStore keeps images in S3 or an S3-compatible service.
type S3ObjectStore struct {
	Client *s3.S3
}

// translate maps a missing key onto ObjectNotFoundErr and wraps everything
// else with the operation and location.
func translate(err error, op, bucket, key string) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == http.StatusNotFound && key != "" {
		return &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	return fmt.Errorf("%s `s3://%s/%s`: %w", op, bucket, key, err)
}

func (os *S3ObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	if _, err := os.Client.PutObject(&s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   data,
	}); err != nil {
		return translate(err, "putting object", bucket, key)
	}
	return nil
}

func (os *S3ObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	rsp, err := os.Client.GetObject(&s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, translate(err, "getting object", bucket, key)
	}
	return rsp.Body, nil
}

// ListObjects returns every key under `prefix`, following continuation
// tokens.
func (os *S3ObjectStore) ListObjects(bucket, prefix string) ([]string, error) {
	var keys []string
	if err := os.Client.ListObjectsV2Pages(
		&s3.ListObjectsV2Input{Bucket: &bucket, Prefix: &prefix},
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, object := range page.Contents {
				if object.Key != nil {
					keys = append(keys, *object.Key)
				}
			}
			return true
		},
	); err != nil {
		return nil, translate(err, "listing objects under", bucket, prefix)
	}
	return keys, nil
}

// DeleteObject removes `key`. S3 deletes of absent keys succeed, so the key
// is checked first to report ObjectNotFoundErr.
func (os *S3ObjectStore) DeleteObject(bucket, key string) error {
	if _, err := os.Client.HeadObject(&s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return translate(err, "deleting object", bucket, key)
	}
	if _, err := os.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return translate(err, "deleting object", bucket, key)
	}
	return nil
}
