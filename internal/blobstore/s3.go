package blobstore

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/services"
)

// PutObjectAPI is the slice of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

// S3Store writes objects to an S3 compatible bucket.
type S3Store struct {
	api       PutObjectAPI
	bucket    string
	publicURL string
}

// NewS3Store builds a store from the storage settings. A custom endpoint
// switches the client to path-style addressing for MinIO.
func NewS3Store(ctx context.Context, cfg config.Storage) (*S3Store, error) {
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "s3", "bucket is required", nil)
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "s3", "load aws config", err)
	}
	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, cfg.S3Bucket, publicBase(cfg)), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(api PutObjectAPI, bucket, publicURL string) *S3Store {
	return &S3Store{api: api, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

func publicBase(cfg config.Storage) string {
	if cfg.S3PublicBaseURL != "" {
		return cfg.S3PublicBaseURL
	}
	if cfg.S3Endpoint != "" {
		return strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	return "https://" + cfg.S3Bucket + ".s3." + region + ".amazonaws.com"
}

// Put uploads the object and returns its public URL.
func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	if !ValidName(obj.Name) {
		return "", services.Wrap(services.ErrValidation, "blobstore", "s3 put", "invalid object name", nil)
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.Name),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "blobstore", "s3 put", s.bucket+"/"+obj.Name, err)
	}
	return s.publicURL + "/" + escapeKey(obj.Name), nil
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
