package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentalmgmt/internal/app"
	"rentalmgmt/internal/util"
	"rentalmgmt/pkg/domain"
	"rentalmgmt/pkg/i18n"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Translator     i18n.Translator
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	translator     i18n.Translator
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Translator == nil {
		return nil, errors.New("server: translator is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		translator:     cfg.Translator,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("rentalmgmt", s.trustedProxies, util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)
	s.mux.Handle("GET /auth/me", s.withUser(s.handleMe))
	s.mux.Handle("POST /auth/me/password", s.withUser(s.handleChangePassword))

	// users
	s.mux.Handle("GET /users", s.withUser(s.handleListUsers))
	s.mux.Handle("POST /users", s.withUser(s.handleCreateUser))
	s.mux.Handle("GET /users/{id}", s.withUser(s.handleGetUser))
	s.mux.Handle("PUT /users/{id}", s.withUser(s.handleUpdateUser))
	s.mux.Handle("DELETE /users/{id}", s.withUser(s.handleDeleteUser))

	// properties
	s.mux.Handle("GET /properties", s.withUser(s.handleListProperties))
	s.mux.Handle("POST /properties", s.withUser(s.handleCreateProperty))
	s.mux.Handle("GET /properties/{id}", s.withUser(s.handleGetProperty))
	s.mux.Handle("PUT /properties/{id}", s.withUser(s.handleUpdateProperty))
	s.mux.Handle("DELETE /properties/{id}", s.withUser(s.handleDeleteProperty))

	// assignments
	s.mux.Handle("PUT /assignments/properties/{id}/owner", s.withUser(s.handleAssignOwner))
	s.mux.Handle("POST /assignments/properties/{id}/tenants", s.withUser(s.handleAssignTenant))
	s.mux.Handle("DELETE /assignments/tenants/{id}", s.withUser(s.handleUnassignTenant))

	// invoices
	s.mux.Handle("POST /invoices/upload", s.withUser(s.handleUploadInvoice))
	s.mux.Handle("GET /invoices/my", s.withUser(s.handleMyInvoices))
	s.mux.Handle("GET /invoices/tags/property/{id}", s.withUser(s.handlePropertyTags))
	s.mux.Handle("GET /invoices/summary/monthly/{id}", s.withUser(s.handleMonthlySummary))
	s.mux.Handle("PUT /invoices/{id}/tags", s.withUser(s.handleUpdateInvoiceTags))
	s.mux.Handle("DELETE /invoices/{id}", s.withUser(s.handleDeleteInvoice))
	// /invoices/property/{id} and /invoices/{id}/file overlap under the
	// pattern matcher, so both go through one dispatcher.
	s.mux.Handle("GET /invoices/{first}/{second}", s.withUser(s.handleInvoiceGet))

	// tags
	s.mux.Handle("GET /tags", s.withUser(s.handleListTags))
	s.mux.Handle("DELETE /tags/{id}", s.withUser(s.handleDeleteTag))

	// dashboard
	s.mux.Handle("GET /dashboard/summary", s.withUser(s.handleDashboard))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, app.ErrUnauthenticated)
			return
		}
		user, err := s.app.UserFromToken(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

// auth

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	user, err := s.app.Register(req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	User        domain.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(req.Identifier, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.writeError(w, r, app.ErrUnauthenticated)
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req changePasswordRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.ChangePassword(user, token, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	users, err := s.app.ListUsers(user, r.URL.Query().Get("role"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"count": len(users),
	})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req registerRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	created, err := s.app.CreateUser(user, req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	target, err := s.app.GetUser(user, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	updated, err := s.app.UpdateUser(user, id, app.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteUser(user, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// properties

type propertyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	OwnerID *uint  `json:"ownerId"`
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request, user domain.User) {
	properties, err := s.app.ListProperties(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": properties,
		"count": len(properties),
	})
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req propertyRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	property, err := s.app.CreateProperty(user, app.PropertyInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, property)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	property, err := s.app.GetProperty(user, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req propertyRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	property, err := s.app.UpdateProperty(user, id, app.PropertyInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteProperty(r.Context(), user, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// assignments

type assignOwnerRequest struct {
	UserID uint `json:"userId"`
}

func (s *Server) handleAssignOwner(w http.ResponseWriter, r *http.Request, user domain.User) {
	propertyID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignOwnerRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	property, err := s.app.AssignOwner(user, propertyID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

type assignTenantRequest struct {
	TenantID  uint       `json:"tenantId"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (s *Server) handleAssignTenant(w http.ResponseWriter, r *http.Request, user domain.User) {
	propertyID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignTenantRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	var start time.Time
	if req.StartDate != nil {
		start = *req.StartDate
	}
	assignment, err := s.app.AssignTenant(user, propertyID, req.TenantID, start, req.EndDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (s *Server) handleUnassignTenant(w http.ResponseWriter, r *http.Request, user domain.User) {
	assignmentID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.UnassignTenant(user, assignmentID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// invoices

func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.writeValidation(w, r, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeValidation(w, r, "file is required (field: file)")
		return
	}
	defer file.Close()

	propertyID, err := strconv.ParseUint(r.FormValue("propertyId"), 10, 32)
	if err != nil {
		s.writeValidation(w, r, "propertyId must be a positive integer")
		return
	}
	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil {
		s.writeValidation(w, r, "amount must be a number")
		return
	}
	issueDate := time.Now().UTC()
	if raw := strings.TrimSpace(r.FormValue("issueDate")); raw != "" {
		issueDate, err = parseDate(raw)
		if err != nil {
			s.writeValidation(w, r, "issueDate must be YYYY-MM-DD or RFC 3339")
			return
		}
	}
	invoice, err := s.app.UploadInvoice(r.Context(), user, app.UploadInvoiceParams{
		PropertyID:  uint(propertyID),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		File:        file,
		Size:        header.Size,
		Amount:      amount,
		IssueDate:   issueDate,
		Description: r.FormValue("description"),
		Tags:        r.FormValue("tags"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (s *Server) handleMyInvoices(w http.ResponseWriter, r *http.Request, user domain.User) {
	invoices, err := s.app.MyInvoices(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": invoices,
		"count": len(invoices),
	})
}

func (s *Server) handleInvoiceGet(w http.ResponseWriter, r *http.Request, user domain.User) {
	first, second := r.PathValue("first"), r.PathValue("second")
	if first == "property" {
		s.handlePropertyInvoices(w, r, user, second)
		return
	}
	if second != "file" {
		s.writeError(w, r, app.ErrNotFound)
		return
	}
	s.handleInvoiceFile(w, r, user, first)
}

func (s *Server) handlePropertyInvoices(w http.ResponseWriter, r *http.Request, user domain.User, rawID string) {
	propertyID, ok := s.parseID(w, r, "id", rawID)
	if !ok {
		return
	}
	invoices, err := s.app.InvoicesForProperty(user, propertyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": invoices,
		"count": len(invoices),
	})
}

func (s *Server) handlePropertyTags(w http.ResponseWriter, r *http.Request, user domain.User) {
	propertyID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	tags, err := s.app.TagsForProperty(user, propertyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": tags,
		"count": len(tags),
	})
}

type updateTagsRequest struct {
	Tags string `json:"tags"`
}

func (s *Server) handleUpdateInvoiceTags(w http.ResponseWriter, r *http.Request, user domain.User) {
	invoiceID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateTagsRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	invoice, err := s.app.UpdateInvoiceTags(user, invoiceID, req.Tags)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (s *Server) handleInvoiceFile(w http.ResponseWriter, r *http.Request, user domain.User, rawID string) {
	invoiceID, ok := s.parseID(w, r, "id", rawID)
	if !ok {
		return
	}
	url, err := s.app.InvoiceFileURL(r.Context(), user, invoiceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request, user domain.User) {
	invoiceID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteInvoice(r.Context(), user, invoiceID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request, user domain.User) {
	propertyID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	buckets, err := s.app.MonthlySummary(user, propertyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": buckets,
		"count": len(buckets),
	})
}

// tags

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request, user domain.User) {
	tags, err := s.app.ListTags(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": tags,
		"count": len(tags),
	})
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request, user domain.User) {
	tagID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteTag(user, tagID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// dashboard

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	summary, err := s.app.Dashboard(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// helpers

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	return s.parseID(w, r, name, r.PathValue(name))
}

func (s *Server) parseID(w http.ResponseWriter, r *http.Request, name, raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		s.writeValidation(w, r, name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		s.writeValidation(w, r, "invalid JSON body")
		return false
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// writeError maps an application error to an HTTP status and a localized
// message keyed by the Accept-Language header.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, key := classify(err)
	locale := s.translator.SupportedLocale(r.Header.Get("Accept-Language"))
	message := s.translator.Translate("errors."+key, locale, nil)
	if status == http.StatusBadRequest {
		// Validation details are more useful than the generic message.
		if detail := strings.TrimSpace(err.Error()); detail != "" {
			message = detail
		}
	}
	writeJSON(w, status, errorResponse{
		Error:     message,
		Code:      strings.ToUpper(key),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func (s *Server) writeValidation(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     detail,
		Code:      "VALIDATION",
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrUsernameExists):
		return http.StatusConflict, "user_exists"
	case errors.Is(err, app.ErrEmailExists):
		return http.StatusConflict, "email_exists"
	case errors.Is(err, app.ErrAdminSelfDelete):
		return http.StatusBadRequest, "admin_self_delete"
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, app.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_role"
	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, app.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, app.ErrValidation):
		return http.StatusBadRequest, "validation"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
