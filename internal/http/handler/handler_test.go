package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"assetapi/internal/http/middleware"
	"assetapi/internal/model"
	"assetapi/internal/service"
	serviceMocks "assetapi/internal/service/mocks"
	storeMocks "assetapi/internal/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeError(t *testing.T, r io.Reader) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(r).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	store := new(storeMocks.MockStorage)

	app := fiber.New()
	app.Get("/health", HealthCheck(store, db, nil))

	t.Run("healthy", func(t *testing.T) {
		store.On("PingContext", mock.Anything).Return(nil).Once()
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("storage unhealthy", func(t *testing.T) {
		store.On("PingContext", mock.Anything).Return(errors.New("bucket gone")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp.Body).Code)
	})

	t.Run("database unhealthy", func(t *testing.T) {
		store.On("PingContext", mock.Anything).Return(nil).Once()
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	store.AssertExpectations(t)
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadImage(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New()
	app.Post("/api/upload-image", UploadImage(mockSvc))

	post := func(body io.Reader, contentType string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/upload-image", body)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "image", "cat.png", "image/png", []byte("png-bytes"))
		mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
			return in.OriginalName == "cat.png" && in.ContentType == "image/png" && in.Size == 9
		})).Return(&model.Asset{
			Filename:     "1700000000000-AbC123-cat.png",
			OriginalName: "cat.png",
			Size:         9,
			URL:          "/uploads/1700000000000-AbC123-cat.png",
		}, nil).Once()

		resp := post(body, ct)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res uploadResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.True(t, res.Success)
		assert.Equal(t, "/uploads/1700000000000-AbC123-cat.png", res.URL)
		assert.Equal(t, "cat.png", res.OriginalName)
		assert.Equal(t, int64(9), res.Size)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		resp := post(nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp.Body)
		assert.False(t, res.Success)
		assert.Equal(t, "FILE_REQUIRED", res.Code)
	})

	t.Run("wrong field name", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "cat.png", "image/png", []byte("x"))
		resp := post(body, ct)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	errCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"too large", service.ErrTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"unsupported type", service.ErrUnsupportedType, http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE"},
		{"storage failure", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, "image", "doc.txt", "text/plain", []byte("x"))
			mockSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			resp := post(body, ct)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp.Body).Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestFilenameGuard(t *testing.T) {
	// no expectations: any service call fails the test
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, mockSvc)

	names := []string{"..", "%2E%2E", "..%2F..%2Fetc%2Fpasswd", "a%2Fb.png", "a%5Cb.png", "x..y.png"}
	for _, name := range names {
		for _, tc := range []struct{ method, path string }{
			{http.MethodDelete, "/api/delete-image/" + name},
			{http.MethodGet, "/api/check-image/" + name},
			{http.MethodGet, "/uploads/" + name},
			{http.MethodHead, "/uploads/" + name},
		} {
			t.Run(tc.method+" "+tc.path, func(t *testing.T) {
				resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
				require.NoError(t, err)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})
		}
	}
	mockSvc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	mockSvc.AssertNotCalled(t, "Stat", mock.Anything, mock.Anything)
	mockSvc.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestDeleteImage(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New()
	app.Delete("/api/delete-image/:filename", DeleteImage(mockSvc))

	tests := []struct {
		name       string
		removed    bool
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"removed", true, nil, http.StatusOK, "image deleted"},
		{"never uploaded", false, nil, http.StatusOK, "image already absent"},
		{"io failure", false, errors.New("permission denied"), http.StatusInternalServerError, "failed to delete image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc.On("Delete", mock.Anything, "a b.png", mock.Anything).Return(tt.removed, tt.err).Once()

			resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/api/delete-image/a%20b.png", nil))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var res deleteResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
			assert.Equal(t, tt.err == nil, res.Success)
			assert.Equal(t, tt.wantMsg, res.Message)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestCheckImage(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New()
	app.Get("/api/check-image/:filename", CheckImage(mockSvc))
	modified := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("exists", func(t *testing.T) {
		mockSvc.On("Stat", mock.Anything, "a.png").
			Return(&model.Asset{Filename: "a.png", Size: 42, ModifiedAt: modified}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/check-image/a.png", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res checkResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.True(t, res.Exists)
		assert.Equal(t, int64(42), res.Size)
		assert.Equal(t, "2026-01-02T03:04:05.000Z", res.Modified)
	})

	t.Run("missing", func(t *testing.T) {
		mockSvc.On("Stat", mock.Anything, "gone.png").Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/check-image/gone.png", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		raw, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"exists":false}`, string(raw))
	})

	mockSvc.AssertExpectations(t)
}

func TestServeImage(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New()
	app.Get("/uploads/:filename", ServeImage(mockSvc))

	assertNoCache := func(t *testing.T, resp *http.Response) {
		t.Helper()
		assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
		assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))
		assert.Equal(t, "0", resp.Header.Get("Expires"))
	}

	t.Run("get", func(t *testing.T) {
		mockSvc.On("Open", mock.Anything, "a.webp").
			Return(io.NopCloser(strings.NewReader("webp-bytes")), &model.Asset{Filename: "a.webp", ContentType: "image/webp", Size: 10}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/a.webp", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))
		assertNoCache(t, resp)

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "webp-bytes", string(body))
	})

	t.Run("head uses metadata only", func(t *testing.T) {
		mockSvc.On("Stat", mock.Anything, "a.jpg").
			Return(&model.Asset{Filename: "a.jpg", ContentType: "image/jpeg", Size: 5}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodHead, "/uploads/a.jpg", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
		assertNoCache(t, resp)
	})

	t.Run("missing", func(t *testing.T) {
		mockSvc.On("Open", mock.Anything, "gone.png").Return(nil, nil, service.ErrNotFound).Once()
		mockSvc.On("Stat", mock.Anything, "gone.png").Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/gone.png", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Code)

		resp, _ = app.Test(httptest.NewRequest(http.MethodHead, "/uploads/gone.png", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	mockSvc.AssertExpectations(t)
}

func TestListImages(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New()
	app.Get("/api/images", ListImages(mockSvc))

	mockSvc.On("List", mock.Anything).Return(&service.AssetListResult{
		Items: []model.Asset{{Filename: "b.png"}, {Filename: "a.png"}},
		Total: 2,
	}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res listResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "b.png", res.Data[0].Filename)

	mockSvc.On("List", mock.Anything).Return(nil, errors.New("read dir")).Once()
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestListImageEvents(t *testing.T) {
	mockSvc := new(serviceMocks.MockAssetService)
	app := fiber.New()
	app.Get("/api/image-events", ListImageEvents(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Events", mock.Anything, "", 5, 10).Return(&service.EventListResult{
			Items: []model.AssetEvent{{ID: "e1", Action: model.AssetActionUpload}},
			Total: 11,
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/image-events?limit=5&offset=10", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res service.EventListResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, 11, res.Total)
		assert.Equal(t, model.AssetActionUpload, res.Items[0].Action)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/image-events?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp.Body).Code)
	})

	t.Run("no database", func(t *testing.T) {
		mockSvc.On("Events", mock.Anything, "", 10, 0).Return(nil, service.ErrEventsUnavailable).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/image-events", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "EVENTS_UNAVAILABLE", decodeError(t, resp.Body).Code)
	})

	mockSvc.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})
	mockSvc := new(serviceMocks.MockAssetService)
	RegisterRoutes(app, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp.Body).Code)
	})
}

func TestErrorHandlerMapsEntityTooLarge(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	app.Post("/api/upload-image", func(c *fiber.Ctx) error {
		return fiber.ErrRequestEntityTooLarge
	})

	req := httptest.NewRequest(http.MethodPost, "/api/upload-image", nil)
	req.Header.Set(middleware.RequestIDHeader, "rid-413")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	var payload errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.False(t, payload.Success)
	assert.Equal(t, "FILE_TOO_LARGE", payload.Code)
	assert.Equal(t, "rid-413", payload.RequestID)
}
