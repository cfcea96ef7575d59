package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// S3Archiver stores raw invoice images in S3-compatible storage so
// extractions can be audited against the original document.
type S3Archiver struct {
	s3Client *s3.S3
	bucket   string
}

// Config holds configuration for the S3 archiver
type Config struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Region          string
}

// NewS3Archiver creates a new S3 archiver
func NewS3Archiver(config *Config) (*S3Archiver, error) {
	if config.AccessKeyID == "" || config.AccessKeySecret == "" {
		return nil, fmt.Errorf("S3 configuration is incomplete")
	}

	if config.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}

	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		Credentials:      credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess := session.Must(session.NewSession(awsConfig))

	return &S3Archiver{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
	}, nil
}

// ArchiveImage stores an invoice image under a date-partitioned key and
// returns the object key.
func (a *S3Archiver) ArchiveImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	key := fmt.Sprintf("invoices/%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), extensionFor(mimeType))

	_, err := a.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(image))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return key, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
