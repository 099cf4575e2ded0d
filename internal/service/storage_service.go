package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"account-service/internal/events"
	"account-service/internal/model"
	objstore "account-service/internal/s3"
	"account-service/internal/storage"
)

const (
	DefaultSignedURLExpiry = 3600
	MaxSignedURLExpiry     = 86400

	sniffLen = 512
)

var storageOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storage_operations_total",
		Help: "Storage operations by outcome",
	},
	[]string{"operation", "category", "result"},
)

// ObjectStore is the subset of *s3.Store the service needs.
type ObjectStore interface {
	Put(ctx context.Context, in objstore.PutInput) error
	Get(ctx context.Context, key string) (*objstore.Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Usage(ctx context.Context, prefix string) (objstore.Usage, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
}

type CategoryStats struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Count int    `json:"count"`
}

type StorageStats struct {
	TotalSize  int64           `json:"totalSize"`
	TotalFiles int             `json:"totalFiles"`
	Categories []CategoryStats `json:"categories"`
}

type StorageService interface {
	Upload(ctx context.Context, category storage.Category, file UploadFile) (*UploadResult, error)
	Replace(ctx context.Context, category storage.Category, oldKey string, file UploadFile) (*UploadResult, error)
	Get(ctx context.Context, key string) (*objstore.Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	SignedURL(ctx context.Context, key string, expiresIn int) (string, error)
	Stats(ctx context.Context) (*StorageStats, error)
	KeyFromURL(url string) (string, bool)
}

type storageService struct {
	store     ObjectStore
	policies  storage.Policies
	publisher events.EventPublisher
	now       func() time.Time
}

func NewStorageService(store ObjectStore, policies storage.Policies, publisher events.EventPublisher) StorageService {
	return &storageService{
		store:     store,
		policies:  policies,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *storageService) Upload(ctx context.Context, category storage.Category, file UploadFile) (*UploadResult, error) {
	res, err := s.upload(ctx, category, file)
	s.record(ctx, storage.OpUpload, string(category), keyOrPath(res, category), err)
	return res, err
}

// Replace validates the new file before touching the old one. A failure to
// delete the old object is logged and does not abort the upload.
func (s *storageService) Replace(ctx context.Context, category storage.Category, oldKey string, file UploadFile) (*UploadResult, error) {
	file, err := s.prepare(category, file)
	if err != nil {
		s.record(ctx, storage.OpReplace, string(category), string(category), err)
		return nil, err
	}

	if oldKey != "" {
		if err := checkKey(oldKey); err != nil {
			s.record(ctx, storage.OpReplace, string(category), oldKey, err)
			return nil, err
		}
		if err := s.store.Delete(ctx, oldKey); err != nil {
			slog.WarnContext(ctx, "Failed to delete replaced file", "key", oldKey, "error", err)
		}
	}

	res, err := s.put(ctx, category, file)
	s.record(ctx, storage.OpReplace, string(category), keyOrPath(res, category), err)
	return res, err
}

func (s *storageService) upload(ctx context.Context, category storage.Category, file UploadFile) (*UploadResult, error) {
	file, err := s.prepare(category, file)
	if err != nil {
		return nil, err
	}
	return s.put(ctx, category, file)
}

// prepare resolves the content type and runs the category policy.
func (s *storageService) prepare(category storage.Category, file UploadFile) (UploadFile, error) {
	if _, err := s.policies.Lookup(category); err != nil {
		return file, err
	}
	if file.Body == nil {
		return file, storage.NewError(storage.CodeUploadFailed, "no file provided", nil)
	}

	file.Name = storage.BaseName(file.Name)

	declared := strings.ToLower(strings.TrimSpace(file.ContentType))
	if declared == "" || declared == "application/octet-stream" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(file.Body, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return file, storage.NewError(storage.CodeUploadFailed, "failed to read file", err)
		}
		head = head[:n]
		declared, _, _ = strings.Cut(mimetype.Detect(head).String(), ";")
		// keep the body seekable: the S3 client cannot sign a one-shot stream over plain HTTP
		if rs, ok := file.Body.(io.ReadSeeker); ok {
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return file, storage.NewError(storage.CodeUploadFailed, "failed to read file", err)
			}
		} else {
			file.Body = io.MultiReader(bytes.NewReader(head), file.Body)
		}
	}
	file.ContentType = declared

	if err := s.policies.Validate(category, storage.FileHeader{
		Name:        file.Name,
		ContentType: file.ContentType,
		Size:        file.Size,
	}); err != nil {
		return file, err
	}
	return file, nil
}

func (s *storageService) put(ctx context.Context, category storage.Category, file UploadFile) (*UploadResult, error) {
	policy, err := s.policies.Lookup(category)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := storage.BuildKey(category, file.Name, now)

	err = s.store.Put(ctx, objstore.PutInput{
		Key:          key,
		Body:         file.Body,
		Size:         file.Size,
		ContentType:  file.ContentType,
		CacheControl: policy.CacheControl,
		Metadata: map[string]string{
			"original-name": file.Name,
			"upload-date":   now.UTC().Format(time.RFC3339),
			"storage-path":  string(category),
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "Upload failed", "key", key, "error", err)
		return nil, storage.Wrap(err, "failed to upload file")
	}

	return &UploadResult{
		Key:         key,
		URL:         s.store.PublicURL(key),
		FileName:    key[strings.LastIndex(key, "/")+1:],
		ContentType: file.ContentType,
		Size:        file.Size,
		Path:        string(category),
	}, nil
}

func (s *storageService) Get(ctx context.Context, key string) (*objstore.Object, error) {
	obj, err := s.get(ctx, key)
	s.record(ctx, storage.OpDownload, categoryLabel(key), key, err)
	return obj, err
}

func (s *storageService) get(ctx context.Context, key string) (*objstore.Object, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	obj, err := s.store.Get(ctx, key)
	if errors.Is(err, objstore.ErrObjectNotFound) {
		return nil, storage.NewError(storage.CodeFileNotFound, fmt.Sprintf("file not found: %s", key), err)
	}
	if err != nil {
		return nil, storage.Wrap(err, "failed to fetch file")
	}
	return obj, nil
}

func (s *storageService) Delete(ctx context.Context, key string) error {
	err := checkKey(key)
	if err == nil {
		slog.InfoContext(ctx, "Deleting file", "key", key)
		if err = s.store.Delete(ctx, key); err != nil {
			err = storage.Wrap(err, "failed to delete file")
		}
	}
	s.record(ctx, storage.OpDelete, categoryLabel(key), key, err)
	return err
}

func (s *storageService) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var err error
	if !storage.IsListablePrefix(prefix) {
		err = storage.NewError(storage.CodeInvalidPath, fmt.Sprintf("invalid path: %s", prefix), nil)
	} else if keys, err = s.store.List(ctx, prefix); err != nil {
		err = storage.Wrap(err, "failed to list files")
	}
	s.record(ctx, storage.OpList, categoryLabel(prefix), prefix, err)
	return keys, err
}

func (s *storageService) SignedURL(ctx context.Context, key string, expiresIn int) (string, error) {
	url, err := s.signedURL(ctx, key, expiresIn)
	s.record(ctx, storage.OpSign, categoryLabel(key), key, err)
	return url, err
}

func (s *storageService) signedURL(ctx context.Context, key string, expiresIn int) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if expiresIn == 0 {
		expiresIn = DefaultSignedURLExpiry
	}
	if expiresIn < 1 || expiresIn > MaxSignedURLExpiry {
		return "", storage.NewError(storage.CodeInvalidPath,
			fmt.Sprintf("expiresIn must be between 1 and %d seconds", MaxSignedURLExpiry), nil)
	}

	url, err := s.store.PresignGet(ctx, key, time.Duration(expiresIn)*time.Second)
	if err != nil {
		return "", storage.Wrap(err, "failed to sign url")
	}
	return url, nil
}

func (s *storageService) Stats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{Categories: []CategoryStats{}}
	for _, c := range storage.Categories() {
		u, err := s.store.Usage(ctx, string(c)+"/")
		if err != nil {
			return nil, storage.Wrap(err, "failed to compute storage stats")
		}
		stats.Categories = append(stats.Categories, CategoryStats{Path: string(c), Size: u.Size, Count: u.Count})
		stats.TotalSize += u.Size
		stats.TotalFiles += u.Count
	}
	return stats, nil
}

// KeyFromURL maps a public URL of this bucket back to its object key.
func (s *storageService) KeyFromURL(url string) (string, bool) {
	base := s.store.PublicURL("")
	if url == "" || !strings.HasPrefix(url, base) {
		return "", false
	}
	key := strings.TrimPrefix(url, base)
	if _, ok := storage.CategoryOf(key); !ok {
		return "", false
	}
	return key, true
}

func (s *storageService) record(ctx context.Context, op storage.Operation, category, path string, err error) {
	result := "success"
	event := &model.StorageEvent{
		Operation:  string(op),
		Path:       path,
		FileName:   path[strings.LastIndex(path, "/")+1:],
		Success:    err == nil,
		OccurredAt: s.now(),
	}
	if err != nil {
		result = "error"
		code := string(storage.CodeUploadFailed)
		if c, ok := storage.CodeOf(err); ok {
			code = string(c)
		}
		event.ErrorCode = &code
	}
	if id, ok := UserIDFrom(ctx); ok {
		event.UserID = &id
	}

	storageOperationsTotal.WithLabelValues(string(op), category, result).Inc()

	if s.publisher == nil {
		return
	}
	if perr := s.publisher.PublishStorageEvent(event); perr != nil {
		slog.WarnContext(ctx, "Failed to publish storage event", "operation", op, "error", perr)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return storage.NewError(storage.CodeInvalidPath, "file key is required", nil)
	}
	if strings.Contains(key, "..") {
		return storage.NewError(storage.CodeInvalidPath, fmt.Sprintf("invalid file path: %s", key), nil)
	}
	if _, ok := storage.CategoryOf(key); !ok {
		return storage.NewError(storage.CodeInvalidPath, fmt.Sprintf("invalid file path: %s", key), nil)
	}
	return nil
}

func categoryLabel(key string) string {
	for _, c := range storage.Categories() {
		if strings.HasPrefix(key, string(c)) {
			return string(c)
		}
	}
	return "none"
}

func keyOrPath(res *UploadResult, category storage.Category) string {
	if res != nil {
		return res.Key
	}
	return string(category)
}
