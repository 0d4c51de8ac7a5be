package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"
)

// S3Archiver mirrors downloaded invoices to S3-compatible storage
type S3Archiver struct {
	s3Client *s3.S3
	bucket   string
	log      *logrus.Entry
}

// Config holds configuration for S3 archiver
type Config struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Region          string
}

// NewS3Archiver creates a new S3 archiver. An empty endpoint targets AWS.
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

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	return &S3Archiver{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
		log:      logrus.StandardLogger().WithField("type", "storage/s3"),
	}, nil
}

// Key returns the object key of an invoice
func Key(provider, fileName string) string {
	return path.Join(provider, fileName)
}

// Archive uploads an invoice under <provider>/<fileName>
func (a *S3Archiver) Archive(ctx context.Context, provider, fileName string, data []byte) error {
	key := Key(provider, fileName)

	_, err := a.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/pdf"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	a.log.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"key":    key,
	}).Debug("invoice archived")
	return nil
}
