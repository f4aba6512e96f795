package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
	"github.com/ulaundry/laundry-api/internal/service"
)

// formUpload opens an optional multipart file. The returned closer is never nil.
func formUpload(c *gin.Context, field string) (*service.Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, fmt.Errorf("%w: could not read %s file", apperrors.ErrValidation, field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("open upload: %w", err)
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, func() { f.Close() }, nil
}
