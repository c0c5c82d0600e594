package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// Service stores resource attachments in remote object storage.
type Service interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// AttachmentPrefix is the key prefix holding every object of one resource.
func AttachmentPrefix(keyPrefix, userID, resourceID string) string {
	parts := []string{userID, resourceID}
	if p := strings.Trim(keyPrefix, "/"); p != "" {
		parts = append([]string{p}, parts...)
	}
	return strings.Join(parts, "/") + "/"
}

// AttachmentKey builds the object key for an uploaded file. Directory
// components of filename are dropped.
func AttachmentKey(keyPrefix, userID, resourceID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	return AttachmentPrefix(keyPrefix, userID, resourceID) + name
}
