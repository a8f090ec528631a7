// Package assets stores vendor uploads in an S3 compatible bucket.
package assets

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-storefront-auth"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) ObjectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectPutter is the slice of the S3 client the uploader needs
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the bucket settings. Endpoint is only needed for MinIO or
// other S3 compatible stores.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicBaseURL prefixes object keys to build download links. Defaults
	// to Endpoint/Bucket.
	PublicBaseURL string
	PathStyle     bool
}

// S3Uploader implements auth.AssetUploader
type S3Uploader struct {
	client  ObjectPutter
	bucket  string
	baseURL string
	newKey  func() string
}

// NewS3Uploader loads the AWS config and builds the client
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, goerrors.New("asset bucket is required", goerrors.CategoryValidation)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to load aws config")
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client ObjectPutter, cfg Config) *S3Uploader {
	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com"
		}
	}
	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(base, "/"),
		newKey:  uuid.NewString,
	}
}

// Upload stores file under folder with a random name that keeps the
// original extension.
func (u *S3Uploader) Upload(ctx context.Context, folder string, file auth.Upload) (auth.UploadedAsset, error) {
	if file.Body == nil {
		return auth.UploadedAsset{}, goerrors.New("upload has no body", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"filename": file.Filename})
	}

	ext := strings.ToLower(path.Ext(file.Filename))
	key := path.Join(strings.Trim(folder, "/"), u.newKey()+ext)

	contentType := file.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file.Body,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"original-name": path.Base(file.Filename)},
	}
	if file.Size > 0 {
		in.ContentLength = aws.Int64(file.Size)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		return auth.UploadedAsset{}, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to store object").
			WithMetadata(map[string]any{"bucket": u.bucket, "key": key})
	}

	return auth.UploadedAsset{Key: key, URL: u.baseURL + "/" + key}, nil
}
