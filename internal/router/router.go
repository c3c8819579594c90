// Package router exposes the service over HTTP. Every response, including
// errors, unmatched routes and recovered panics, uses the JSON envelope
// {"success": bool, ...}.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/patric-chuzhbe/interioai/internal/gzippedhttp"
	"github.com/patric-chuzhbe/interioai/internal/logger"
	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/service"
	"github.com/patric-chuzhbe/interioai/internal/user"
)

const (
	maxRequestBodySize = 1 << 20

	msgUserRegistered    = "User registered successfully"
	msgLoginSuccessful   = "Login successful"
	msgUserUpdated       = "User updated successfully"
	msgDesignSaved       = "Design saved successfully"
	msgDesignDeleted     = "Design deleted successfully"
	msgBackendRunning    = "InterioAI Backend is running"
	msgReady             = "ready"
	msgStorageNotReady   = "Storage is not available"
	msgInvalidJSONBody   = "Invalid JSON body"
	msgEndpointNotFound  = "Endpoint not found"
	msgMethodNotAllowed  = "Method not allowed"
	msgAccessDenied      = "Access denied"
	msgUserNotFound      = "User not found"
	msgDesignNotFound    = "Design not found"
	msgInternalServerErr = "Internal server error"
)

type accountService interface {
	Signup(ctx context.Context, request models.SignupRequest) (*user.Response, error)
	Login(ctx context.Context, request models.LoginRequest) (*user.Response, error)
	GetUser(ctx context.Context, userID int64) (*user.Response, error)
	UpdateUser(ctx context.Context, userID int64, request models.UpdateUserRequest) (*user.Response, error)
}

type designService interface {
	SaveDesign(ctx context.Context, request models.SaveDesignRequest) (*models.Design, error)
	GetUserDesigns(ctx context.Context, userID int64) ([]models.Design, error)
	GetDesign(ctx context.Context, designID int64) (*models.Design, error)
	DeleteDesign(ctx context.Context, designID int64) error
}

type statsService interface {
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
	Ping(ctx context.Context) error
}

type backend interface {
	accountService
	designService
	statsService
}

type subnetGuard interface {
	TrustedOnly(onDenied http.HandlerFunc) func(http.Handler) http.Handler
}

// Router holds the dependencies of the HTTP handlers.
type Router struct {
	svc       backend
	ipChecker subnetGuard
}

// New builds the chi router with the middleware chain and every route of the API.
func New(svc backend, ipChecker subnetGuard, allowedOrigins []string) *chi.Mux {
	myRouter := Router{
		svc:       svc,
		ipChecker: ipChecker,
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		logger.WithLoggingHTTPMiddleware,
		myRouter.recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodDelete,
				http.MethodOptions,
			},
			AllowedHeaders: []string{"Accept", "Accept-Encoding", "Content-Encoding", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}),
		gzippedhttp.UngzipRequest(myRouter.badGzipBody),
		gzippedhttp.GzipResponse,
	)

	router.NotFound(myRouter.notFound)
	router.MethodNotAllowed(myRouter.methodNotAllowed)

	router.Post(`/api/auth/signup`, myRouter.PostApiauthsignup)
	router.Post(`/api/auth/login`, myRouter.PostApiauthlogin)

	router.Get(`/api/users/{id:[0-9]+}`, myRouter.GetApiusersid)
	router.Put(`/api/users/{id:[0-9]+}`, myRouter.PutApiusersid)

	router.Post(`/api/designs`, myRouter.PostApidesigns)
	// The owner id shares the {id} segment with DELETE /api/designs/{id}.
	router.Get(`/api/designs/{id:[0-9]+}`, myRouter.GetApidesignsuserid)
	router.Get(`/api/designs/single/{id:[0-9]+}`, myRouter.GetApidesignssingleid)
	router.Delete(`/api/designs/{id:[0-9]+}`, myRouter.DeleteApidesignsid)

	router.Get(`/api/health`, myRouter.GetApihealth)
	router.Get(`/api/health/ready`, myRouter.GetApihealthready)

	router.With(
		myRouter.ipChecker.TrustedOnly(myRouter.accessDenied),
	).Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	return router
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)

	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugw("failed to write response body", "error", err)
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{
		Success: false,
		Error:   message,
	})
}

func statusByKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps the error kind to a status. Server faults are
// logged and reported with a generic message.
func writeServiceError(response http.ResponseWriter, request *http.Request, err error) {
	kind := service.KindOf(err)
	if kind == service.KindServer {
		logger.Log.Errorw(
			"request failed",
			"request_id", middleware.GetReqID(request.Context()),
			"uri", request.RequestURI,
			"error", err,
		)
		writeError(response, http.StatusInternalServerError, msgInternalServerErr)
		return
	}

	writeError(response, statusByKind(kind), service.MessageOf(err))
}

// decodeJSON reads the request body into dst. An empty body leaves dst untouched,
// so the service reports the missing fields.
func decodeJSON(response http.ResponseWriter, request *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(response, request.Body, maxRequestBodySize))
	if err != nil {
		return err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	return json.Unmarshal(body, dst)
}

// idParam parses a numeric path parameter. The route pattern guarantees digits,
// so the only failure left is an overflow, which cannot name an existing row.
func idParam(request *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(request, name), 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

func (rt *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			logger.Log.Errorw(
				"panic while serving request",
				"request_id", middleware.GetReqID(request.Context()),
				"uri", request.RequestURI,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			writeError(response, http.StatusInternalServerError, msgInternalServerErr)
		}()

		next.ServeHTTP(response, request)
	})
}

func (rt *Router) notFound(response http.ResponseWriter, request *http.Request) {
	writeError(response, http.StatusNotFound, msgEndpointNotFound)
}

func (rt *Router) methodNotAllowed(response http.ResponseWriter, request *http.Request) {
	writeError(response, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

func (rt *Router) accessDenied(response http.ResponseWriter, request *http.Request) {
	writeError(response, http.StatusForbidden, msgAccessDenied)
}

func (rt *Router) badGzipBody(response http.ResponseWriter, request *http.Request, err error) {
	logger.Log.Debugw("failed to open gzip request body", "error", err)
	writeError(response, http.StatusBadRequest, msgInvalidJSONBody)
}

func (rt *Router) PostApiauthsignup(response http.ResponseWriter, request *http.Request) {
	var signupRequest models.SignupRequest
	if err := decodeJSON(response, request, &signupRequest); err != nil {
		writeError(response, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}

	created, err := rt.svc.Signup(request.Context(), signupRequest)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.UserResponse{
		Success: true,
		Message: msgUserRegistered,
		User:    created,
	})
}

func (rt *Router) PostApiauthlogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if err := decodeJSON(response, request, &loginRequest); err != nil {
		writeError(response, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}

	usr, err := rt.svc.Login(request.Context(), loginRequest)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.LoginResponse{
		Success: true,
		Message: msgLoginSuccessful,
		User:    usr,
		UserID:  usr.ID,
	})
}

func (rt *Router) GetApiusersid(response http.ResponseWriter, request *http.Request) {
	userID, ok := idParam(request, "id")
	if !ok {
		writeError(response, http.StatusNotFound, msgUserNotFound)
		return
	}

	usr, err := rt.svc.GetUser(request.Context(), userID)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UserResponse{
		Success: true,
		User:    usr,
	})
}

func (rt *Router) PutApiusersid(response http.ResponseWriter, request *http.Request) {
	userID, ok := idParam(request, "id")
	if !ok {
		writeError(response, http.StatusNotFound, msgUserNotFound)
		return
	}

	var updateRequest models.UpdateUserRequest
	if err := decodeJSON(response, request, &updateRequest); err != nil {
		writeError(response, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}

	updated, err := rt.svc.UpdateUser(request.Context(), userID, updateRequest)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UserResponse{
		Success: true,
		Message: msgUserUpdated,
		User:    updated,
	})
}

func (rt *Router) PostApidesigns(response http.ResponseWriter, request *http.Request) {
	var saveRequest models.SaveDesignRequest
	if err := decodeJSON(response, request, &saveRequest); err != nil {
		writeError(response, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}

	design, err := rt.svc.SaveDesign(request.Context(), saveRequest)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.DesignResponse{
		Success: true,
		Message: msgDesignSaved,
		Design:  design,
	})
}

func (rt *Router) GetApidesignsuserid(response http.ResponseWriter, request *http.Request) {
	userID, ok := idParam(request, "id")
	if !ok {
		writeError(response, http.StatusNotFound, msgUserNotFound)
		return
	}

	designs, err := rt.svc.GetUserDesigns(request.Context(), userID)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}
	if designs == nil {
		designs = []models.Design{}
	}

	writeJSON(response, http.StatusOK, models.DesignsResponse{
		Success: true,
		Designs: designs,
		Total:   len(designs),
	})
}

func (rt *Router) GetApidesignssingleid(response http.ResponseWriter, request *http.Request) {
	designID, ok := idParam(request, "id")
	if !ok {
		writeError(response, http.StatusNotFound, msgDesignNotFound)
		return
	}

	design, err := rt.svc.GetDesign(request.Context(), designID)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.DesignResponse{
		Success: true,
		Design:  design,
	})
}

func (rt *Router) DeleteApidesignsid(response http.ResponseWriter, request *http.Request) {
	designID, ok := idParam(request, "id")
	if !ok {
		writeError(response, http.StatusNotFound, msgDesignNotFound)
		return
	}

	if err := rt.svc.DeleteDesign(request.Context(), designID); err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{
		Success: true,
		Message: msgDesignDeleted,
	})
}

// GetApihealth never touches storage.
func (rt *Router) GetApihealth(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, models.HealthResponse{
		Success:   true,
		Message:   msgBackendRunning,
		Timestamp: time.Now().UTC(),
	})
}

func (rt *Router) GetApihealthready(response http.ResponseWriter, request *http.Request) {
	if err := rt.svc.Ping(request.Context()); err != nil {
		logger.Log.Warnw("storage ping failed", "error", err)
		writeError(response, http.StatusInternalServerError, msgStorageNotReady)
		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{
		Success: true,
		Message: msgReady,
	})
}

func (rt *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := rt.svc.GetInternalStats(request.Context())
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}
