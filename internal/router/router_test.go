package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/interioai/internal/db/memorystorage"
	"github.com/patric-chuzhbe/interioai/internal/db/storage"
	"github.com/patric-chuzhbe/interioai/internal/ipchecker"
	"github.com/patric-chuzhbe/interioai/internal/logger"
	"github.com/patric-chuzhbe/interioai/internal/mockstorage"
	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/service"
)

const loopbackSubnet = "127.0.0.0/8"

type initOption func(*initOptions)

type initOptions struct {
	mockStorage   storage.Storage
	trustedSubnet string
}

func withMockStorage(db storage.Storage) initOption {
	return func(options *initOptions) {
		options.mockStorage = db
	}
}

func withTrustedSubnet(subnet string) initOption {
	return func(options *initOptions) {
		options.trustedSubnet = subnet
	}
}

func must(t *testing.T, err error) {
	if t != nil {
		require.NoError(t, err)
		return
	}
	if err != nil {
		panic(err)
	}
}

// setupTestRouter accepts a nil t so Example functions can share it.
func setupTestRouter(t *testing.T, optionsProto ...initOption) (*httptest.Server, storage.Storage) {
	options := &initOptions{trustedSubnet: loopbackSubnet}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	var db storage.Storage
	if options.mockStorage != nil {
		db = options.mockStorage
	} else {
		memoryDB, err := memorystorage.New()
		must(t, err)
		db = memoryDB
	}

	checker, err := ipchecker.New(options.trustedSubnet)
	must(t, err)

	must(t, logger.Init("debug"))

	return httptest.NewServer(New(service.New(db), checker, []string{"*"})), db
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	User    *userBody       `json:"user"`
	UserID  int64           `json:"user_id"`
	Design  *models.Design  `json:"design"`
	Designs []models.Design `json:"designs"`
	Total   int             `json:"total"`
}

type userBody struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DesignsCount int64  `json:"designs_count"`
}

func call(t *testing.T, method, url string, body interface{}) (int, envelope) {
	t.Helper()

	req := resty.New().R()
	req.Method = method
	req.URL = url
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}

	resp, err := req.Send()
	require.NoError(t, err, "error making HTTP request")

	var result envelope
	require.NoError(t, json.Unmarshal(resp.Body(), &result), "body: %s", resp.Body())

	return resp.StatusCode(), result
}

func signup(t *testing.T, serverURL, name, email string) int64 {
	t.Helper()
	code, body := call(t, http.MethodPost, serverURL+"/api/auth/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": "pw123",
	})
	require.Equal(t, http.StatusCreated, code)

	return body.User.ID
}

func TestScenario(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	code, body := call(t, http.MethodPost, server.URL+"/api/auth/signup", `{"name":"Ann","email":"ann@x.com","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, body.Success)
	assert.Equal(t, "User registered successfully", body.Message)
	assert.Equal(t, int64(1), body.User.ID)

	code, body = call(t, http.MethodPost, server.URL+"/api/auth/login", `{"email":"ann@x.com","password":"pw123"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.UserID)
	assert.Equal(t, int64(1), body.User.ID)

	code, body = call(t, http.MethodPost, server.URL+"/api/designs", `{
		"user_id": 1,
		"room_type": "Living Room",
		"style": "Modern",
		"palette": "Neutral",
		"width": "12",
		"length": "15"
	}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Design saved successfully", body.Message)
	assert.Equal(t, int64(1), body.Design.ID)

	code, body = call(t, http.MethodGet, server.URL+"/api/designs/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Designs, 1)
	assert.Equal(t, int64(1), body.Designs[0].ID)

	code, body = call(t, http.MethodDelete, server.URL+"/api/designs/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Design deleted successfully", body.Message)

	code, body = call(t, http.MethodGet, server.URL+"/api/designs/single/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, body.Success)
	assert.Equal(t, "Design not found", body.Error)
}

func TestPostApiauthsignup(t *testing.T) {
	server, db := setupTestRouter(t)
	defer server.Close()

	type tExpectedResponse struct {
		code  int
		error string
	}
	testCases := []struct {
		name             string
		method           string
		body             interface{}
		expectedResponse tExpectedResponse
	}{
		{
			name:             "positive",
			method:           http.MethodPost,
			body:             `{"name":"Ann","email":"ann@x.com","password":"pw123"}`,
			expectedResponse: tExpectedResponse{http.StatusCreated, ""},
		},
		{
			name:             "duplicate_email",
			method:           http.MethodPost,
			body:             `{"name":"Ann Again","email":"ann@x.com","password":"other"}`,
			expectedResponse: tExpectedResponse{http.StatusConflict, "Email already registered"},
		},
		{
			name:             "missing_password",
			method:           http.MethodPost,
			body:             `{"name":"Bob","email":"bob@x.com"}`,
			expectedResponse: tExpectedResponse{http.StatusBadRequest, "Missing required fields"},
		},
		{
			name:             "empty_body",
			method:           http.MethodPost,
			body:             ``,
			expectedResponse: tExpectedResponse{http.StatusBadRequest, "Missing required fields"},
		},
		{
			name:             "malformed_JSON",
			method:           http.MethodPost,
			body:             `{"name":`,
			expectedResponse: tExpectedResponse{http.StatusBadRequest, "Invalid JSON body"},
		},
		{
			name:             "unsupported_method_get",
			method:           http.MethodGet,
			expectedResponse: tExpectedResponse{http.StatusMethodNotAllowed, "Method not allowed"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			code, body := call(t, testCase.method, server.URL+"/api/auth/signup", testCase.body)

			assert.Equal(t, testCase.expectedResponse.code, code, "Response code didn't match expected value")
			assert.Equal(t, testCase.expectedResponse.error, body.Error)
			assert.Equal(t, code < 300, body.Success)
		})
	}

	users, err := db.GetNumberOfUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)
}

func TestSignupResponseHasNoPassword(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"name":"Ann","email":"ann@x.com","password":"pw123"}`).
		Post(server.URL + "/api/auth/signup")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	assert.NotContains(t, string(resp.Body()), "password")
	assert.NotContains(t, string(resp.Body()), "pw123")
	assert.Contains(t, string(resp.Body()), `"designs_count":0`)
}

func TestPostApiauthlogin(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	signup(t, server.URL, "Ann", "ann@x.com")

	testCases := []struct {
		name  string
		body  string
		code  int
		error string
	}{
		{name: "positive", body: `{"email":"ann@x.com","password":"pw123"}`, code: http.StatusOK},
		{name: "wrong_password", body: `{"email":"ann@x.com","password":"nope"}`, code: http.StatusUnauthorized, error: "Invalid email or password"},
		{name: "unknown_email", body: `{"email":"bob@x.com","password":"pw123"}`, code: http.StatusUnauthorized, error: "Invalid email or password"},
		{name: "missing_password", body: `{"email":"ann@x.com"}`, code: http.StatusBadRequest, error: "Email and password required"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			code, body := call(t, http.MethodPost, server.URL+"/api/auth/login", testCase.body)

			assert.Equal(t, testCase.code, code)
			assert.Equal(t, testCase.error, body.Error)
		})
	}
}

func TestLongPasswordSignupAndLogin(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	credentials := map[string]string{
		"name":     "Ann",
		"email":    "ann@x.com",
		"password": strings.Repeat("correct horse battery staple ", 5),
	}

	code, body := call(t, http.MethodPost, server.URL+"/api/auth/signup", credentials)
	require.Equal(t, http.StatusCreated, code, body.Error)

	code, body = call(t, http.MethodPost, server.URL+"/api/auth/login", credentials)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.UserID)
}

func TestUsersEndpoints(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	annID := signup(t, server.URL, "Ann", "ann@x.com")
	signup(t, server.URL, "Bob", "bob@x.com")
	annURL := fmt.Sprintf("%s/api/users/%d", server.URL, annID)

	code, body := call(t, http.MethodGet, annURL, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ann", body.User.Name)

	code, body = call(t, http.MethodPut, annURL, `{"name":"Annie"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User updated successfully", body.Message)
	assert.Equal(t, "Annie", body.User.Name)
	assert.Equal(t, "ann@x.com", body.User.Email)

	code, body = call(t, http.MethodPut, annURL, `{"email":"bob@x.com"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email already in use", body.Error)

	code, _ = call(t, http.MethodPut, annURL, `{"email":"ann@x.com"}`)
	assert.Equal(t, http.StatusOK, code)

	code, body = call(t, http.MethodGet, server.URL+"/api/users/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", body.Error)

	code, _ = call(t, http.MethodPut, server.URL+"/api/users/999", `{"name":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = call(t, http.MethodGet, server.URL+"/api/users/abc", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Endpoint not found", body.Error)
}

func TestPostApidesigns(t *testing.T) {
	server, db := setupTestRouter(t)
	defer server.Close()

	annID := signup(t, server.URL, "Ann", "ann@x.com")

	code, body := call(t, http.MethodPost, server.URL+"/api/designs", map[string]interface{}{
		"user_id":   annID,
		"style":     "Modern",
		"palette":   "Neutral",
		"width":     "12",
		"length":    "15",
		"furniture": "sofa",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing field: room_type", body.Error)

	code, body = call(t, http.MethodPost, server.URL+"/api/designs", map[string]interface{}{
		"user_id":   404,
		"room_type": "Bedroom",
		"style":     "Modern",
		"palette":   "Neutral",
		"width":     "12",
		"length":    "15",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", body.Error)

	designs, err := db.GetNumberOfDesigns(context.Background())
	require.NoError(t, err)
	assert.Zero(t, designs)

	code, body = call(t, http.MethodPost, server.URL+"/api/designs", fmt.Sprintf(`{
		"user_id": %d,
		"room_type": "Kitchen",
		"style": "Rustic",
		"palette": "Warm",
		"width": 12.50,
		"length": "15"
	}`, annID))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, models.Dimension("12.50"), body.Design.Width)
	assert.Equal(t, "", body.Design.Furniture)

	code, body = call(t, http.MethodGet, fmt.Sprintf("%s/api/designs/single/%d", server.URL, body.Design.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Kitchen", body.Design.RoomType)
	assert.Equal(t, models.Dimension("12.50"), body.Design.Width)

	code, body = call(t, http.MethodGet, server.URL+"/api/designs/77", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", body.Error)

	code, body = call(t, http.MethodDelete, server.URL+"/api/designs/77", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Design not found", body.Error)
}

func TestUnmatchedRoutes(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	code, body := call(t, http.MethodGet, server.URL+"/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, body.Success)
	assert.Equal(t, "Endpoint not found", body.Error)

	code, body = call(t, http.MethodPatch, server.URL+"/api/users/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "Method not allowed", body.Error)
}

func TestHealth(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	code, body := call(t, http.MethodGet, server.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, "InterioAI Backend is running", body.Message)

	code, body = call(t, http.MethodGet, server.URL+"/api/health/ready", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body.Message)
}

func TestReadinessWithBrokenStorage(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	server, _ := setupTestRouter(t, withMockStorage(db))
	defer server.Close()

	code, body := call(t, http.MethodGet, server.URL+"/api/health/ready", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, body.Success)

	code, _ = call(t, http.MethodGet, server.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	db.AssertNumberOfCalls(t, "Ping", 1)
}

func TestServerErrorsAreGeneric(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetUserByID", mock.Anything, int64(5), mock.Anything).Return(nil, errors.New("relation \"user\" does not exist"))

	server, _ := setupTestRouter(t, withMockStorage(db))
	defer server.Close()

	code, body := call(t, http.MethodGet, server.URL+"/api/users/5", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body.Error)
}

func TestPanicIsRecovered(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetDesignByID", mock.Anything, int64(1), mock.Anything).Run(func(args mock.Arguments) {
		panic("unexpected nil pointer")
	})

	server, _ := setupTestRouter(t, withMockStorage(db))
	defer server.Close()

	code, body := call(t, http.MethodGet, server.URL+"/api/designs/single/1", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, body.Success)
	assert.Equal(t, "Internal server error", body.Error)
}

func TestGetApiinternalstats(t *testing.T) {
	t.Run("trusted client", func(t *testing.T) {
		server, _ := setupTestRouter(t)
		defer server.Close()

		annID := signup(t, server.URL, "Ann", "ann@x.com")
		code, _ := call(t, http.MethodPost, server.URL+"/api/designs", map[string]interface{}{
			"user_id": annID, "room_type": "Bedroom", "style": "Boho", "palette": "Earth", "width": "3", "length": "4",
		})
		require.Equal(t, http.StatusCreated, code)

		resp, err := resty.New().R().Get(server.URL + "/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.JSONEq(t, `{"success":true,"users_count":1,"designs_count":1}`, string(resp.Body()))

		var stats models.InternalStatsResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &stats))
		assert.True(t, stats.Success)
		assert.Equal(t, int64(1), stats.Users)
		assert.Equal(t, int64(1), stats.Designs)
	})

	t.Run("untrusted client", func(t *testing.T) {
		server, _ := setupTestRouter(t, withTrustedSubnet("10.0.0.0/8"))
		defer server.Close()

		code, body := call(t, http.MethodGet, server.URL+"/api/internal/stats", nil)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "Access denied", body.Error)
	})

	t.Run("no subnet configured", func(t *testing.T) {
		server, _ := setupTestRouter(t, withTrustedSubnet(""))
		defer server.Close()

		code, _ := call(t, http.MethodGet, server.URL+"/api/internal/stats", nil)
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func gzipString(input string) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write([]byte(input)); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func TestGzip(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	compressed, err := gzipString(`{"name":"Ann","email":"ann@x.com","password":"pw123"}`)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/auth/signup", bytes.NewReader(compressed))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)

	var body envelope
	require.NoError(t, json.Unmarshal(plain, &body))
	assert.Equal(t, "ann@x.com", body.User.Email)

	broken, err := http.NewRequest(http.MethodPost, server.URL+"/api/auth/login", bytes.NewReader([]byte("plain text")))
	require.NoError(t, err)
	broken.Header.Set("Content-Encoding", "gzip")

	resp, err = http.DefaultClient.Do(broken)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	resp, err := resty.New().R().
		SetHeader("Origin", "http://localhost:3000").
		SetHeader("Access-Control-Request-Method", http.MethodPost).
		Execute(http.MethodOptions, server.URL+"/api/auth/signup")
	require.NoError(t, err)

	assert.Less(t, resp.StatusCode(), 300)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))

	resp, err = resty.New().R().
		SetHeader("Origin", "http://localhost:3000").
		Get(server.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
