package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetObjectContent fetches the bytes at a public object-store URL (or a
// bare key), grounded on internal/agent/s3_storage.go's GetObject usage.
func (s *DynamoStore) GetObjectContent(ctx context.Context, url string) ([]byte, error) {
	key := objectKey(url, s.bucket)
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get object %s: %v", ErrUnavailable, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read object %s: %v", ErrUnavailable, key, err)
	}
	return data, nil
}

// PutObject uploads data to key (deterministic key per SPEC_FULL.md §4.7
// Prepare: {eventCode}/{templateName}.html) and returns the canonical
// public URL.
func (s *DynamoStore) PutObject(ctx context.Context, key string, data []byte) (string, error) {
	fullKey := s.prefix + key
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %v", ErrUnavailable, fullKey, err)
	}
	return fmt.Sprintf("https://%s/%s", s.bucket, fullKey), nil
}

// objectKey derives the S3 key from a stored URL or bare key.
func objectKey(url, bucket string) string {
	prefix := "https://" + bucket + "/"
	if strings.HasPrefix(url, prefix) {
		return strings.TrimPrefix(url, prefix)
	}
	return url
}
