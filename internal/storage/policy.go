package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type Category string

const (
	Avatars   Category = "uploads/avatars"
	Products  Category = "uploads/products"
	Documents Category = "uploads/documents"
)

const rootPrefix = "uploads/"

func Categories() []Category {
	return []Category{Avatars, Products, Documents}
}

type Policy struct {
	MaxSize           int64
	AllowedTypes      []string
	AllowedExtensions []string
	CacheControl      string
}

type Policies map[Category]Policy

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

func DefaultPolicies() Policies {
	return Policies{
		Avatars: {
			MaxSize:           5 * 1024 * 1024,
			AllowedTypes:      imageTypes,
			AllowedExtensions: imageExtensions,
			CacheControl:      "public, max-age=31536000",
		},
		Products: {
			MaxSize:           10 * 1024 * 1024,
			AllowedTypes:      imageTypes,
			AllowedExtensions: imageExtensions,
			CacheControl:      "public, max-age=86400",
		},
		Documents: {
			MaxSize: 20 * 1024 * 1024,
			AllowedTypes: []string{
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			},
			AllowedExtensions: []string{".pdf", ".doc", ".docx"},
			CacheControl:      "private, no-cache",
		},
	}
}

// ParseCategory accepts both "uploads/avatars" and "avatars". An empty
// string resolves to Documents.
func ParseCategory(s string) (Category, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return Documents, nil
	}
	if !strings.HasPrefix(s, rootPrefix) {
		s = rootPrefix + s
	}

	c := Category(s)
	if !slices.Contains(Categories(), c) {
		return "", NewError(CodeInvalidPath, fmt.Sprintf("path is not configured: %s", s), nil)
	}
	return c, nil
}

// FileHeader is what validation needs to know about an incoming file.
type FileHeader struct {
	Name        string
	ContentType string
	Size        int64
}

func (p Policies) Lookup(c Category) (Policy, error) {
	policy, ok := p[c]
	if !ok {
		return Policy{}, NewError(CodeInvalidPath, fmt.Sprintf("path is not configured: %s", c), nil)
	}
	return policy, nil
}

func (p Policies) Validate(c Category, f FileHeader) error {
	policy, err := p.Lookup(c)
	if err != nil {
		return err
	}

	if f.Size > policy.MaxSize {
		return NewError(CodeFileTooLarge,
			fmt.Sprintf("file exceeds the maximum size of %dMB", policy.MaxSize/1024/1024), nil)
	}

	contentType := strings.ToLower(strings.TrimSpace(f.ContentType))
	if !slices.Contains(policy.AllowedTypes, contentType) {
		return NewError(CodeInvalidFileType,
			fmt.Sprintf("file type not allowed. Allowed: %s", strings.Join(policy.AllowedTypes, ", ")), nil)
	}

	if len(policy.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !slices.Contains(policy.AllowedExtensions, ext) {
			return NewError(CodeInvalidFileType,
				fmt.Sprintf("file extension not allowed. Allowed: %s", strings.Join(policy.AllowedExtensions, ", ")), nil)
		}
	}

	return nil
}

// BaseName strips any directory components a client may have sent.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return "file"
	}
	return base
}

func BuildKey(c Category, originalName string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s", c, now.UnixMilli(), BaseName(originalName))
}

func IsListablePrefix(prefix string) bool {
	if prefix == "" {
		return true
	}
	for _, c := range Categories() {
		if strings.HasPrefix(prefix, string(c)) {
			return true
		}
	}
	return false
}

// CategoryOf returns the category a key was stored under.
func CategoryOf(key string) (Category, bool) {
	for _, c := range Categories() {
		if strings.HasPrefix(key, string(c)+"/") {
			return c, true
		}
	}
	return "", false
}
