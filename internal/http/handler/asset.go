package handler

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"assetapi/internal/http/middleware"
	"assetapi/internal/logger"
	"assetapi/internal/model"
	"assetapi/internal/service"
)

// uploadField is the multipart field carrying the image.
const uploadField = "image"

type uploadResponse struct {
	Success      bool   `json:"success"`
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type checkResponse struct {
	Exists   bool   `json:"exists"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
}

type listResponse struct {
	Success bool          `json:"success"`
	Data    []model.Asset `json:"data"`
	Total   int           `json:"total"`
}

// filenameParam returns the URL-decoded :filename parameter, or "" with false
// after writing a 400 when it is malformed or path-like.
func filenameParam(c *fiber.Ctx) (string, bool) {
	name, err := url.PathUnescape(c.Params("filename"))
	if err == nil {
		err = service.ValidateFilename(name)
	}
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
		return "", false
	}
	return name, true
}

// UploadImage stores one multipart image.
//
//	@Summary	Upload an image
//	@Tags		images
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		image	formData	file	true	"Image file (jpeg, png, gif, webp; max 10 MB)"
//	@Success	200		{object}	uploadResponse
//	@Failure	400		{object}	errorPayload
//	@Failure	413		{object}	errorPayload
//	@Failure	415		{object}	errorPayload
//	@Failure	500		{object}	errorPayload
//	@Router		/api/upload-image [post]
func UploadImage(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(uploadField)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "no image file provided")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		asset, err := svc.Upload(c.UserContext(), service.UploadInput{
			Reader:       f,
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get(fiber.HeaderContentType),
			Size:         fh.Size,
			RequestID:    middleware.RequestIDFrom(c),
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrFileRequired):
				return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "no image file provided")
			case errors.Is(err, service.ErrTooLarge):
				return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the 10 MB limit")
			case errors.Is(err, service.ErrUnsupportedType):
				return writeError(c, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", "only jpeg, png, gif and webp images are allowed")
			}
			logger.FromContext(c.UserContext()).Error("upload failed",
				"original_name", fh.Filename,
				"error", err,
			)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		return c.Status(fiber.StatusOK).JSON(uploadResponse{
			Success:      true,
			URL:          asset.URL,
			Filename:     asset.Filename,
			OriginalName: asset.OriginalName,
			Size:         asset.Size,
		})
	}
}

// DeleteImage removes an image; deleting an absent image succeeds.
//
//	@Summary	Delete an image
//	@Tags		images
//	@Produce	json
//	@Param		filename	path		string	true	"Stored filename"
//	@Success	200			{object}	deleteResponse
//	@Failure	400			{object}	errorPayload
//	@Failure	500			{object}	errorPayload
//	@Router		/api/delete-image/{filename} [delete]
func DeleteImage(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := filenameParam(c)
		if !ok {
			return nil
		}

		removed, err := svc.Delete(c.UserContext(), name, middleware.RequestIDFrom(c))
		if err != nil {
			if errors.Is(err, service.ErrInvalidFilename) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			}
			logger.FromContext(c.UserContext()).Error("delete failed",
				"filename", name,
				"error", err,
			)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete image")
		}

		msg := "image deleted"
		if !removed {
			msg = "image already absent"
		}
		return c.JSON(deleteResponse{Success: true, Message: msg})
	}
}

// CheckImage reports whether an image exists.
//
//	@Summary	Check an image
//	@Tags		images
//	@Produce	json
//	@Param		filename	path		string	true	"Stored filename"
//	@Success	200			{object}	checkResponse
//	@Failure	404			{object}	checkResponse
//	@Failure	400			{object}	errorPayload
//	@Router		/api/check-image/{filename} [get]
func CheckImage(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := filenameParam(c)
		if !ok {
			return nil
		}

		asset, err := svc.Stat(c.UserContext(), name)
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(checkResponse{Exists: false})
		case errors.Is(err, service.ErrInvalidFilename):
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
		case err != nil:
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		return c.JSON(checkResponse{
			Exists:   true,
			Filename: asset.Filename,
			Size:     asset.Size,
			Modified: asset.ModifiedAt.UTC().Format(timeLayout),
		})
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ServeImage streams a stored image with caching disabled. HEAD requests are
// answered from metadata without opening the file.
//
//	@Summary	Fetch an image
//	@Tags		images
//	@Produce	image/jpeg,image/png,image/gif,image/webp
//	@Param		filename	path	string	true	"Stored filename"
//	@Success	200
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/uploads/{filename} [get]
func ServeImage(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := filenameParam(c)
		if !ok {
			return nil
		}

		if c.Method() == fiber.MethodHead {
			asset, err := svc.Stat(c.UserContext(), name)
			if err != nil {
				return serveError(c, err)
			}
			setNoCache(c, asset.ContentType)
			c.Response().Header.SetContentLength(int(asset.Size))
			c.Status(fiber.StatusOK)
			return nil
		}

		rc, asset, err := svc.Open(c.UserContext(), name)
		if err != nil {
			return serveError(c, err)
		}
		setNoCache(c, asset.ContentType)
		return c.Status(fiber.StatusOK).SendStream(rc, int(asset.Size))
	}
}

func setNoCache(c *fiber.Ctx, contentType string) {
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	c.Set(fiber.HeaderContentType, contentType)
}

func serveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "image not found")
	case errors.Is(err, service.ErrInvalidFilename):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ListImages lists every stored image, newest first.
//
//	@Summary	List images
//	@Tags		images
//	@Produce	json
//	@Success	200	{object}	listResponse
//	@Failure	500	{object}	errorPayload
//	@Router		/api/images [get]
func ListImages(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(listResponse{Success: true, Data: res.Items, Total: res.Total})
	}
}

// ListImageEvents pages through the upload/delete audit trail.
//
//	@Summary	Image audit trail
//	@Tags		images
//	@Produce	json
//	@Param		limit		query		int		false	"Page size (default 10, max 100)"
//	@Param		offset		query		int		false	"Offset"
//	@Param		filename	query		string	false	"Only events for this filename"
//	@Success	200			{object}	service.EventListResult
//	@Failure	400			{object}	errorPayload
//	@Failure	503			{object}	errorPayload
//	@Router		/api/image-events [get]
func ListImageEvents(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.Events(c.UserContext(), c.Query("filename"), limit, offset)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEventsUnavailable):
				return writeError(c, fiber.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "audit trail is not configured")
			case errors.Is(err, service.ErrInvalidFilename):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}
