package blobstore

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/platform/httperr"
)

// multipartOverhead leaves room for boundaries and part headers on top of
// the file itself.
const multipartOverhead = 1 << 20

type Handler struct {
	store    Store
	logger   zerolog.Logger
	onStored func(mimeType string)
	newKey   func() string
}

// NewHandler builds the upload endpoints. onStored, when set, is called after
// each successful upload with the stored MIME type.
func NewHandler(store Store, logger zerolog.Logger, onStored func(mimeType string)) *Handler {
	return &Handler{
		store:    store,
		logger:   logger.With().Str("component", "upload").Logger(),
		onStored: onStored,
		newKey:   uuid.NewString,
	}
}

// RegisterRoutes mounts POST /upload on api and GET /:name on files, which
// is the group for the public upload prefix.
func (h *Handler) RegisterRoutes(api *echo.Group, files *echo.Group) {
	api.POST("/upload", h.Upload)
	files.GET("/:name", h.Serve)
}

func (h *Handler) Upload(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, MaxFileSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return echo.NewHTTPError(http.StatusBadRequest, ErrFileTooLarge.Error())
		case errors.Is(err, http.ErrMissingFile):
			return echo.NewHTTPError(http.StatusBadRequest, ErrMissingFile.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
		}
	}
	if fh.Size > MaxFileSize {
		return echo.NewHTTPError(http.StatusBadRequest, ErrFileTooLarge.Error())
	}

	file, err := fh.Open()
	if err != nil {
		return httperr.Internal(err)
	}
	defer file.Close()

	contentType, err := h.contentType(fh, file)
	if err != nil {
		return httperr.Internal(err)
	}
	if !Allowed(contentType) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidContentType.Error())
	}

	key := h.newKey() + Extension(contentType)
	if err := h.store.Put(req.Context(), key, contentType, file, fh.Size); err != nil {
		return httperr.Internal(err)
	}
	if h.onStored != nil {
		h.onStored(contentType)
	}

	h.logger.Info().
		Str("key", key).
		Str("type", contentType).
		Int64("size", fh.Size).
		Msg("file uploaded")

	return c.JSON(http.StatusOK, Object{
		URL:  h.store.URL(key),
		Type: contentType,
		Size: fh.Size,
		Name: fh.Filename,
	})
}

// contentType resolves the part's type and rewinds file for storage.
func (h *Handler) contentType(fh *multipart.FileHeader, file multipart.File) (string, error) {
	declared := fh.Header.Get(echo.HeaderContentType)
	if bt := baseType(declared); bt != "" && bt != "application/octet-stream" {
		return bt, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return ResolveContentType(declared, head[:n]), nil
}

func (h *Handler) Serve(c echo.Context) error {
	key := c.Param("name")
	rc, err := h.store.Open(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return echo.NewHTTPError(http.StatusNotFound, "File not found").SetInternal(err)
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, typeForKey(key), rc)
}
