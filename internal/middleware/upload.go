package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/posts-api/internal/errs"
	"github.com/deppfellow/posts-api/internal/server"
	"github.com/deppfellow/posts-api/internal/storage"
)

const UploadedFileKey = "uploaded_file"

// UploadedFile describes a file stored by UploadMiddleware.Single.
type UploadedFile struct {
	FieldName    string `json:"field_name"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Destination  string `json:"destination"`
	FileName     string `json:"file_name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
}

// UploadMiddleware stores multipart files before the handler runs.
type UploadMiddleware struct {
	server *server.Server
	store  storage.Storage
	names  *storage.NameGenerator
}

// NewUploadMiddleware stores uploads in store with a process-wide name
// generator.
func NewUploadMiddleware(s *server.Server, store storage.Storage) *UploadMiddleware {
	return &UploadMiddleware{
		server: s,
		store:  store,
		names:  storage.NewNameGenerator(),
	}
}

// Single stores the file sent in the multipart field named field under a
// generated file.<nanos>.<ext> name. A request without that field (or
// without a multipart body) passes through with no descriptor set.
func (u *UploadMiddleware) Single(field string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			req.Body = http.MaxBytesReader(c.Response(), req.Body, u.server.Config.Storage.MaxUploadBytes)

			header, err := c.FormFile(field)
			if err != nil {
				var tooLarge *http.MaxBytesError
				switch {
				case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
					return next(c)
				case errors.As(err, &tooLarge):
					return errs.NewRequestEntityTooLargeError(
						fmt.Sprintf("File exceeds the %d byte limit", tooLarge.Limit))
				default:
					return errs.NewBadRequestError("Malformed multipart body", false, nil, nil, nil)
				}
			}

			src, err := header.Open()
			if err != nil {
				return fmt.Errorf("opening uploaded file: %w", err)
			}
			defer src.Close()

			start := time.Now()
			name := u.names.Next(header.Filename)
			mimeType := header.Header.Get(echo.HeaderContentType)

			obj, err := u.store.Put(req.Context(), name, src, header.Size, mimeType)
			if err != nil {
				return fmt.Errorf("storing uploaded file: %w", err)
			}

			GetLogger(c).Info().
				Str("field", field).
				Str("file_name", name).
				Int64("size", obj.Size).
				Dur("duration", time.Since(start)).
				Msg("stored uploaded file")

			c.Set(UploadedFileKey, &UploadedFile{
				FieldName:    field,
				OriginalName: header.Filename,
				MimeType:     mimeType,
				Destination:  obj.Destination,
				FileName:     name,
				Path:         obj.Path,
				Size:         obj.Size,
			})

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusInternalServerError {
				// A failed request keeps nothing in storage.
				if delErr := u.store.Delete(context.WithoutCancel(req.Context()), name); delErr != nil {
					GetLogger(c).Warn().Err(delErr).Str("file_name", name).Msg("removing orphaned upload")
				}
			}
			return err
		}
	}
}

// GetUploadedFile returns the descriptor stored by Single, or nil.
func GetUploadedFile(c echo.Context) *UploadedFile {
	if f, ok := c.Get(UploadedFileKey).(*UploadedFile); ok {
		return f
	}
	return nil
}
