package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	StorageClass    string
	// DownloadTTL bounds presigned links handed out when no public base URL is set.
	DownloadTTL time.Duration
}

// ObjectStore keeps printed tickets and CSV exports in an S3-compatible bucket.
type ObjectStore struct {
	bucket       string
	publicBase   string
	storageClass string
	downloadTTL  time.Duration
	client       *s3.Client
	presign      *s3.PresignClient
}

func NewObjectStore(ctx context.Context, cfg Config) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	ttl := cfg.DownloadTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...any) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		)),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Cloudflare R2 (S3-compatible) generally requires path-style.
		o.UsePathStyle = true
	})

	return &ObjectStore{
		bucket:       strings.TrimSpace(cfg.Bucket),
		publicBase:   strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		storageClass: strings.TrimSpace(cfg.StorageClass),
		downloadTTL:  ttl,
		client:       client,
		presign:      s3.NewPresignClient(client),
	}, nil
}

// Put uploads body and returns a link staff can open: the public URL when the bucket is
// fronted by one, otherwise a presigned GET.
func (s *ObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		ct = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(ct),
		CacheControl: aws.String("private, no-store"),
	}
	if sc := parseStorageClass(s.storageClass); sc != nil {
		input.StorageClass = *sc
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.Location(ctx, key)
}

func (s *ObjectStore) Location(ctx context.Context, key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.downloadTTL
	})
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// Prune deletes objects under prefix last modified before cutoff.
func (s *ObjectStore) Prune(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	prefix = strings.TrimLeft(prefix, "/")
	removed := 0
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return removed, err
		}
		for _, item := range resp.Contents {
			if item.Key == nil || item.LastModified == nil || !item.LastModified.Before(cutoff) {
				continue
			}
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    item.Key,
			}); err != nil {
				return removed, err
			}
			removed++
		}
		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		token = resp.NextContinuationToken
	}
	return removed, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds "<kind>/<yyyy>/<mm>/<dd>/<owner>/<name>-<uuid>.<ext>".
func ObjectKey(kind, owner, name, ext string, now time.Time) string {
	owner = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(owner), "_")
	if owner == "" {
		owner = "shared"
	}
	name = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" {
		name = kind
	}
	file := name + "-" + uuid.NewString() + "." + strings.TrimPrefix(ext, ".")
	return path.Join(kind, now.UTC().Format("2006/01/02"), owner, file)
}

func parseStorageClass(v string) *types.StorageClass {
	v = strings.TrimSpace(strings.ToUpper(v))
	if v == "" {
		return nil
	}
	sc := types.StorageClass(v)
	return &sc
}
