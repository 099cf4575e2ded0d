package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"account-service/internal/config"
	"account-service/internal/jwt"
	"account-service/internal/model"
	objstore "account-service/internal/s3"
	"account-service/internal/service"
	"account-service/internal/storage"
)

type testServer struct {
	app     *fiber.App
	auth    *mockAuthService
	users   *mockUserService
	storage *mockStorageService
	tokens  *jwt.Manager
	roles   roleTable
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		app:     fiber.New(fiber.Config{ErrorHandler: ErrorHandler}),
		auth:    new(mockAuthService),
		users:   new(mockUserService),
		storage: new(mockStorageService),
		tokens: jwt.NewManager(config.JWTConfig{
			Secret:     "0123456789abcdef0123",
			Issuer:     "account-service",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: time.Hour,
		}),
		roles: roleTable{},
	}

	router := &Router{
		ServiceName: "account-service",
		Auth:        NewAuthHandler(s.auth),
		Users:       NewUserHandler(s.users),
		Storage:     NewStorageHandler(s.storage),
		Tokens:      s.tokens,
		Roles:       s.roles,
	}
	router.Register(s.app)

	t.Cleanup(func() {
		s.auth.AssertExpectations(t)
		s.users.AssertExpectations(t)
		s.storage.AssertExpectations(t)
	})
	return s
}

// login registers a user with the given role and returns a bearer header.
func (s *testServer) login(t *testing.T, role string) (uuid.UUID, string) {
	t.Helper()
	user := &model.User{ID: uuid.New(), Name: "Tester", Email: "tester@test.com", Role: role}
	s.roles[user.ID] = role

	token, err := s.tokens.GenerateAccessToken(user)
	require.NoError(t, err)
	return user.ID, "Bearer " + token
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp, body
}

func jsonRequest(method, target string, payload any) *http.Request {
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, target, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "account-service", body["service"])
}

func TestUnknownRoute_RendersJSONError(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, body["code"])
}

func TestOpenAPISpec(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/docs/openapi.yaml", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "/v1/storage/upload")
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "Missing authorization header"},
		{"wrong scheme", "Basic abc", "Invalid authorization header format"},
		{"garbage token", "Bearer not-a-jwt", "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, body := s.do(t, req)

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
			assert.Equal(t, codeUnauthorized, body["code"])
		})
	}
}

func TestRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		s := newTestServer(t)
		id := uuid.New()
		s.auth.On("RegisterUser", mock.Anything, "new@test.com", "Passw0rd!", "New User").
			Return(&model.User{ID: id}, nil).Once()

		resp, body := s.do(t, jsonRequest(http.MethodPost, "/v1/auth/register", fiber.Map{
			"email": "new@test.com", "password": "Passw0rd!", "name": "New User",
		}))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, id.String(), body["userId"])
	})

	t.Run("email taken", func(t *testing.T) {
		s := newTestServer(t)
		s.auth.On("RegisterUser", mock.Anything, "dup@test.com", "Passw0rd!", "Dup").
			Return(nil, service.ErrEmailTaken).Once()

		resp, body := s.do(t, jsonRequest(http.MethodPost, "/v1/auth/register", fiber.Map{
			"email": "dup@test.com", "password": "Passw0rd!", "name": "Dup",
		}))

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, codeConflict, body["code"])
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(t)

		resp, body := s.do(t, jsonRequest(http.MethodPost, "/v1/auth/register", fiber.Map{
			"email": "not-an-email", "password": "short", "name": "X",
		}))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, codeValidation, body["code"])
	})
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(t)
	s.auth.On("LoginUser", mock.Anything, "a@test.com", "wrong").
		Return(nil, service.ErrInvalidCredentials).Once()

	resp, body := s.do(t, jsonRequest(http.MethodPost, "/v1/auth/login", fiber.Map{
		"email": "a@test.com", "password": "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, codeUnauthorized, body["code"])
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t)
	s.auth.On("RefreshToken", mock.Anything, "refresh-me").Return("new-access", nil).Once()

	resp, body := s.do(t, jsonRequest(http.MethodPost, "/v1/auth/refresh", fiber.Map{"refresh_token": "refresh-me"}))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "new-access", body["access_token"])
}

func TestRequireRoles(t *testing.T) {
	s := newTestServer(t)

	_, userAuth := s.login(t, model.RoleUser)
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/test-protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, userAuth)
	resp, body := s.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, codeForbidden, body["code"])

	adminID, adminAuth := s.login(t, model.RoleAdmin)
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/test-protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, adminAuth)
	resp, body = s.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, adminID.String(), body["userId"])
}

func TestRequireRoles_UnknownUser(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleAdmin)
	for id := range s.roles {
		delete(s.roles, id)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, _ := s.do(t, req)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetProfile(t *testing.T) {
	s := newTestServer(t)
	id, auth := s.login(t, model.RoleUser)
	s.users.On("GetProfile", mock.Anything, id).
		Return(&model.User{ID: id, Name: "Tester", Email: "tester@test.com", Role: model.RoleUser}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tester@test.com", body["email"])
}

func TestChangePassword_Mismatch(t *testing.T) {
	s := newTestServer(t)
	id, auth := s.login(t, model.RoleUser)
	s.users.On("ChangePassword", mock.Anything, id, "OldPassw0rd!", "NewPassw0rd!", "Other123!").
		Return(service.ErrPasswordMismatch).Once()

	req := jsonRequest(http.MethodPut, "/v1/users/me/password", fiber.Map{
		"currentPassword": "OldPassw0rd!", "newPassword": "NewPassw0rd!", "confirmPassword": "Other123!",
	})
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeValidation, body["code"])
}

func TestSetPassword_AlreadySet(t *testing.T) {
	s := newTestServer(t)
	id, auth := s.login(t, model.RoleUser)
	s.users.On("SetPassword", mock.Anything, id, "NewPassw0rd!", "NewPassw0rd!").
		Return(service.ErrPasswordAlreadySet).Once()

	req := jsonRequest(http.MethodPost, "/v1/users/me/password", fiber.Map{
		"newPassword": "NewPassw0rd!", "confirmPassword": "NewPassw0rd!",
	})
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, _ := s.do(t, req)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)
	s.storage.On("Upload", mock.Anything, storage.Documents, mock.MatchedBy(func(f service.UploadFile) bool {
		return f.Name == "report.pdf" && f.Size == 9
	})).Return(&service.UploadResult{
		Key:         "uploads/documents/1700000000000-report.pdf",
		URL:         "https://proj.supabase.co/storage/v1/object/public/bucket/uploads/documents/1700000000000-report.pdf",
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		Size:        9,
		Path:        string(storage.Documents),
	}, nil).Once()

	req := multipartRequest(t, "/v1/storage/upload", "report.pdf", []byte("%PDF-1.4\n"), nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "uploads/documents/1700000000000-report.pdf", body["key"])
	assert.Equal(t, "uploads/documents", body["path"])
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"too large", storage.NewError(storage.CodeFileTooLarge, "File size exceeds maximum allowed size of 5MB", nil), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"wrong type", storage.NewError(storage.CodeInvalidFileType, "File type is not allowed", nil), http.StatusUnsupportedMediaType, "INVALID_FILE_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			_, auth := s.login(t, model.RoleUser)
			s.storage.On("Upload", mock.Anything, storage.Avatars, mock.Anything).Return(nil, tt.err).Once()

			req := multipartRequest(t, "/v1/storage/upload", "me.png", []byte("png"), map[string]string{"path": "uploads/avatars"})
			req.Header.Set(fiber.HeaderAuthorization, auth)
			resp, body := s.do(t, req)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestUpload_UnknownPath(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)

	req := multipartRequest(t, "/v1/storage/upload", "a.pdf", []byte("x"), map[string]string{"path": "uploads/secrets"})
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PATH", body["code"])
}

func TestMultipartRoutes_MissingFile(t *testing.T) {
	for _, target := range []string{"/v1/storage/upload", "/v1/storage/replace", "/v1/users/me/avatar"} {
		t.Run(target, func(t *testing.T) {
			s := newTestServer(t)
			_, auth := s.login(t, model.RoleUser)

			req := httptest.NewRequest(http.MethodPost, target, nil)
			req.Header.Set(fiber.HeaderAuthorization, auth)
			resp, body := s.do(t, req)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "No file received", body["error"])
			assert.Equal(t, codeValidation, body["code"])
		})
	}
}

func TestMultipartRoutes_FieldWithoutFile(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("path", "uploads/avatars"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/storage/replace", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file received", body["error"])
}

func TestUpload_RateLimited(t *testing.T) {
	s := newTestServer(t)

	var last *http.Response
	for i := 0; i <= uploadLimit; i++ {
		last, _ = s.do(t, httptest.NewRequest(http.MethodPost, "/v1/storage/upload", nil))
	}

	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
}

func TestGetFile(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)
	s.storage.On("Get", mock.Anything, "uploads/documents/1-a.pdf").Return(&objstore.Object{
		Body:        io.NopCloser(strings.NewReader("hello")),
		ContentType: "application/pdf",
		Size:        5,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/storage/file/uploads/documents/1-a.pdf", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "hello", string(raw))
}

func TestGetFile_NotFound(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)
	s.storage.On("Get", mock.Anything, "uploads/documents/missing.pdf").
		Return(nil, storage.NewError(storage.CodeFileNotFound, "File not found", nil)).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/storage/file/uploads/documents/missing.pdf", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "FILE_NOT_FOUND", body["code"])
}

func TestDeleteFile(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)
	s.storage.On("Delete", mock.Anything, "uploads/avatars/1-me.png").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/v1/storage/file/uploads/avatars/1-me.png", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File deleted successfully", body["message"])
	assert.Equal(t, "uploads/avatars/1-me.png", body["path"])
}

func TestSignedURL(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)
	s.storage.On("SignedURL", mock.Anything, "uploads/documents/1-a.pdf", 600).
		Return("https://signed.example/a.pdf", nil).Once()
	s.storage.On("SignedURL", mock.Anything, "uploads/documents/1-a.pdf", 0).
		Return("https://signed.example/default.pdf", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/storage/url/uploads/documents/1-a.pdf?expiresIn=600", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://signed.example/a.pdf", body["url"])

	req = httptest.NewRequest(http.MethodGet, "/v1/storage/url/uploads/documents/1-a.pdf", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	_, body = s.do(t, req)
	assert.Equal(t, "https://signed.example/default.pdf", body["url"])
}

func TestSignedURL_RejectsBadExpiry(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)

	for _, q := range []string{"0", "soon"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/storage/url/uploads/documents/1-a.pdf?expiresIn="+q, nil)
		req.Header.Set(fiber.HeaderAuthorization, auth)
		resp, body := s.do(t, req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Equal(t, codeValidation, body["code"], q)
	}
}

func TestListFiles(t *testing.T) {
	s := newTestServer(t)
	_, auth := s.login(t, model.RoleUser)
	s.storage.On("List", mock.Anything, "uploads/avatars").Return([]string{"uploads/avatars/1-me.png"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/storage/files?prefix=uploads/avatars", nil)
	req.Header.Set(fiber.HeaderAuthorization, auth)
	resp, body := s.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"uploads/avatars/1-me.png"}, body["files"])
}

func TestStats_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	s.storage.On("Stats", mock.Anything).Return(&service.StorageStats{
		TotalSize:  42,
		TotalFiles: 2,
		Categories: []service.CategoryStats{{Path: "uploads/avatars", Size: 42, Count: 2}},
	}, nil).Once()

	_, userAuth := s.login(t, model.RoleUser)
	req := httptest.NewRequest(http.MethodGet, "/v1/storage/stats", nil)
	req.Header.Set(fiber.HeaderAuthorization, userAuth)
	resp, _ := s.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, adminAuth := s.login(t, model.RoleAdmin)
	req = httptest.NewRequest(http.MethodGet, "/v1/storage/stats", nil)
	req.Header.Set(fiber.HeaderAuthorization, adminAuth)
	resp, body := s.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 42, body["totalSize"])
	assert.EqualValues(t, 2, body["totalFiles"])
}

func TestStorageTest_IsPublic(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/storage/test", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Storage module is working!", body["message"])
}
