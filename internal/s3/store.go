package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	cfgpkg "account-service/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectAPI is the subset of *s3.Client the store relies on.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	api         ObjectAPI
	presigner   PresignAPI
	bucket      string
	supabaseURL string
}

func NewStore(api ObjectAPI, presigner PresignAPI, bucket, supabaseURL string) *Store {
	return &Store{
		api:         api,
		presigner:   presigner,
		bucket:      bucket,
		supabaseURL: supabaseURL,
	}
}

// NewSupabaseStore connects to the S3 compatible endpoint exposed by
// Supabase Storage at <SUPABASE_URL>/storage/v1/s3.
func NewSupabaseStore(ctx context.Context, sc cfgpkg.StorageConfig) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(sc.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(sc.SupabaseURL + "/storage/v1/s3")
		o.UsePathStyle = true
	})

	slog.Info("Initialized storage client", "bucket", sc.Bucket, "endpoint", sc.SupabaseURL+"/storage/v1/s3")

	return NewStore(client, s3.NewPresignClient(client), sc.Bucket, sc.SupabaseURL), nil
}

func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.supabaseURL, s.bucket, key)
}

type PutInput struct {
	Key          string
	Body         io.Reader
	Size         int64
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Put uploads in.Body. A body that cannot seek is buffered first, since the
// SDK refuses unseekable payloads on non-TLS endpoints.
func (s *Store) Put(ctx context.Context, in PutInput) error {
	body := in.Body
	if _, ok := body.(io.ReadSeeker); !ok && body != nil {
		buf, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read body for %s: %w", in.Key, err)
		}
		body = bytes.NewReader(buf)
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(in.Key),
		Body:          body,
		ContentLength: aws.Int64(in.Size),
		ContentType:   aws.String(in.ContentType),
		CacheControl:  aws.String(in.CacheControl),
		Metadata:      in.Metadata,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", in.Key, err)
	}
	return nil
}

type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Object{
		Body:        out.Body,
		ContentType: contentType,
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

// Delete treats a missing key as already deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("object key is required")
	}

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			slog.WarnContext(ctx, "Object not found for deletion", "bucket", s.bucket, "key", key)
			return nil
		}
		slog.ErrorContext(ctx, "Failed to delete object", "bucket", s.bucket, "key", key, "error", err)
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := s.walk(ctx, prefix, func(obj types.Object) {
		keys = append(keys, aws.ToString(obj.Key))
	})
	return keys, err
}

type Usage struct {
	Size  int64 `json:"size"`
	Count int   `json:"count"`
}

func (s *Store) Usage(ctx context.Context, prefix string) (Usage, error) {
	var u Usage
	err := s.walk(ctx, prefix, func(obj types.Object) {
		u.Size += aws.ToInt64(obj.Size)
		u.Count++
	})
	return u, err
}

func (s *Store) walk(ctx context.Context, prefix string, fn func(types.Object)) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			fn(obj)
		}
	}
	return nil
}

func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
		return true
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
