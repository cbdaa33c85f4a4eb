package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/awsconfig"
)

const contentTypeJSON = "application/json"

type URLMode string

const (
	URLModePresigned URLMode = "presigned"
	URLModePublic    URLMode = "public"
)

type Config struct {
	AWS          awsconfig.Options
	Bucket       string
	UsePathStyle bool
	URLMode      URLMode
	PresignedTTL time.Duration
}

// objectAPI is the part of the S3 client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// EnvelopeArchive keeps raw envelope JSON in an S3-compatible bucket.
type EnvelopeArchive struct {
	client       objectAPI
	presign      func(ctx context.Context, key string) (string, error)
	bucket       string
	region       string
	endpoint     string
	usePathStyle bool
	urlMode      URLMode
}

var _ port.EnvelopeArchive = (*EnvelopeArchive)(nil)

func NewEnvelopeArchive(ctx context.Context, cfg Config) (*EnvelopeArchive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.URLMode == "" {
		cfg.URLMode = URLModePresigned
	}
	if cfg.URLMode != URLModePresigned && cfg.URLMode != URLModePublic {
		return nil, fmt.Errorf("unsupported s3 url mode: %s", cfg.URLMode)
	}
	if cfg.PresignedTTL <= 0 {
		cfg.PresignedTTL = 5 * time.Minute
	}

	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		options.UsePathStyle = cfg.UsePathStyle
	})
	presigner := s3.NewPresignClient(client)
	bucket := strings.TrimSpace(cfg.Bucket)
	ttl := cfg.PresignedTTL

	archive := &EnvelopeArchive{
		client:       client,
		bucket:       bucket,
		region:       cfg.AWS.Region,
		endpoint:     strings.TrimRight(strings.TrimSpace(cfg.AWS.Endpoint), "/"),
		usePathStyle: cfg.UsePathStyle,
		urlMode:      cfg.URLMode,
	}
	archive.presign = func(ctx context.Context, key string) (string, error) {
		request, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return request.URL, nil
	}

	return archive, nil
}

// Archive uploads one envelope and returns a URL to read it back.
func (a *EnvelopeArchive) Archive(ctx context.Context, key string, body []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is required")
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		return "", fmt.Errorf("put object failed: %w", err)
	}

	return a.objectURL(ctx, key)
}

// List returns up to limit archived envelopes under prefix, newest first.
func (a *EnvelopeArchive) List(ctx context.Context, prefix string, limit int) ([]port.ArchivedEnvelope, error) {
	normalizedPrefix := strings.TrimSpace(prefix)
	if normalizedPrefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if limit <= 0 {
		limit = 24
	}
	if limit > 200 {
		limit = 200
	}

	output, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(normalizedPrefix),
		MaxKeys: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("list objects failed: %w", err)
	}

	envelopes := make([]port.ArchivedEnvelope, 0, len(output.Contents))
	for _, object := range output.Contents {
		key := aws.ToString(object.Key)
		if strings.TrimSpace(key) == "" {
			continue
		}

		objectURL, err := a.objectURL(ctx, key)
		if err != nil {
			objectURL = ""
		}
		envelopes = append(envelopes, port.ArchivedEnvelope{
			Key:          key,
			LastModified: aws.ToTime(object.LastModified).UTC(),
			URL:          objectURL,
		})
	}

	sort.Slice(envelopes, func(i, j int) bool {
		return envelopes[i].LastModified.After(envelopes[j].LastModified)
	})

	return envelopes, nil
}

func (a *EnvelopeArchive) objectURL(ctx context.Context, key string) (string, error) {
	if a.urlMode == URLModePublic {
		return a.publicURL(key), nil
	}

	u, err := a.presign(ctx, key)
	if err != nil {
		return "", fmt.Errorf("presign failed: %w", err)
	}
	return u, nil
}

func (a *EnvelopeArchive) publicURL(key string) string {
	escapedKey := strings.ReplaceAll(url.PathEscape(key), "%2F", "/")
	if a.endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, escapedKey)
	}
	if a.usePathStyle {
		return fmt.Sprintf("%s/%s/%s", a.endpoint, a.bucket, escapedKey)
	}
	endpoint := strings.TrimPrefix(a.endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return fmt.Sprintf("https://%s.%s/%s", a.bucket, endpoint, escapedKey)
}
