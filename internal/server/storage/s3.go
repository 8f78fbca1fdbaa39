// Package storage keeps gallery image bytes in an S3-compatible bucket.
// The server never proxies image bytes: clients PUT directly to a presigned
// URL and the server only names, publishes and removes objects.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/snapboard/internal/common"
	sc "github.com/dmitrijs2005/snapboard/internal/server/config"
)

const (
	defaultExt       = "jpg"
	randomPartLength = 11
	presignExpires   = 15 * time.Minute
	// S3 caps DeleteObjects at 1000 keys per request.
	deleteBatchSize = 1000
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	deleteObjects = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
		return c.DeleteObjects(ctx, in, optFns...)
	}
)

// ObjectStore is what the gallery service needs from storage.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	PublicURL(key string) string
	DeleteObjects(ctx context.Context, keys []string) error
}

type S3Store struct {
	config  *sc.Config
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Store loads AWS settings from cfg and builds the S3 clients.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		// MinIO and most self-hosted backends want bucket-in-path addressing.
		o.UsePathStyle = true
	})

	return &S3Store{config: cfg, client: client, presign: newS3PresignClient(client)}, nil
}

// ObjectName builds "{unix_ms}-{random}.{ext}" for an uploaded file. The
// extension is taken from original and defaults to jpg.
func ObjectName(now time.Time, original string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(original), "."))
	if ext == "" {
		ext = defaultExt
	}
	token, err := common.MakeRandToken(randomPartLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), token, ext), nil
}

func (s *S3Store) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(s.presign, ctx, in, s3.WithPresignExpires(presignExpires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Store) PublicURL(key string) string {
	return strings.TrimRight(s.config.S3PublicBaseURL, "/") + "/" + key
}

// DeleteObjects removes keys in batches. Missing keys are not an error.
func (s *S3Store) DeleteObjects(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := deleteObjects(s.client, ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.config.S3Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if out != nil && len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}
