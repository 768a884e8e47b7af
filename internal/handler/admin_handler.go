package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"admin-service/internal/model"
	"admin-service/internal/service"
	"admin-service/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// actorHeader carries the identity of the operator performing the request.
const actorHeader = "X-Admin-Actor"

// AdminHandler handles HTTP requests for administrator account operations
type AdminHandler struct {
	adminService *service.AdminService
	logger       *zap.Logger
}

// NewAdminHandler creates a new administrator handler
func NewAdminHandler(adminService *service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Fields  interface{} `json:"fields,omitempty"`
}

// successResponse creates a successful response
func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// errorResponse creates an error response
func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Message: message,
	}
}

// RegisterRoutes registers all administrator routes
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admins", func(r chi.Router) {
		r.Post("/", h.CreateAdmin)
		r.Get("/select-options", h.GetSelectOptions)

		r.Group(func(r chi.Router) {
			// Add auth middleware here in production
			r.Get("/{adminID}", h.GetAdmin)
			r.Patch("/{adminID}", h.UpdateAdmin)
			r.Patch("/{adminID}/status", h.UpdateAdminStatus)
			r.Patch("/{adminID}/secondary-auth", h.UpdateSecondaryAuth)
			r.Delete("/{adminID}", h.DeleteAdmin)
		})
	})
}

// CreateAdmin handles administrator creation
// @Summary Create a new administrator
// @Description Create an administrator account with optional security questions and keypair issuance
// @Tags admins
// @Accept json
// @Produce json
// @Param request body service.AdminCreateRequest true "Administrator creation request"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /admins [post]
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	var req service.AdminCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.adminService.Create(ctx, &req)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to create administrator")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, successResponse(result, "Administrator created successfully"))
	h.logger.Info("Administrator created via HTTP",
		util.Int64("admin_id", result.AdminID),
		util.Int("questions_stored", result.QuestionsStored),
		util.Bool("keypair_issued", result.KeypairIssued),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "CreateAdmin"),
	)
}

// GetAdmin handles administrator retrieval by ID
// @Summary Get administrator by ID
// @Description Get administrator account details
// @Tags admins
// @Produce json
// @Param adminID path int true "Administrator ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /admins/{adminID} [get]
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	adminID, err := h.adminID(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid administrator ID")
		return
	}

	account, err := h.adminService.Get(ctx, adminID)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to get administrator")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(account, "Administrator retrieved successfully"))
	h.logger.Debug("Administrator retrieved via HTTP",
		util.Int64("admin_id", adminID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "GetAdmin"),
	)
}

// UpdateAdmin handles partial administrator updates
// @Summary Update administrator
// @Description Partially update an administrator account; absent fields are left unchanged
// @Tags admins
// @Accept json
// @Produce json
// @Param adminID path int true "Administrator ID"
// @Param request body service.AdminUpdateRequest true "Partial update request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /admins/{adminID} [patch]
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	adminID, err := h.adminID(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid administrator ID")
		return
	}

	var req service.AdminUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.adminService.Update(ctx, adminID, &req); err != nil {
		h.respondWithServiceError(w, err, "Failed to update administrator")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Administrator updated successfully"))
	h.logger.Info("Administrator updated via HTTP",
		util.Int64("admin_id", adminID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "UpdateAdmin"),
	)
}

// UpdateAdminStatus handles status changes
// @Summary Update administrator status
// @Description Change an administrator's status; the optional note goes to the audit trail only
// @Tags admins
// @Accept json
// @Produce json
// @Param adminID path int true "Administrator ID"
// @Param request body map[string]string true "Status change request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /admins/{adminID}/status [patch]
func (h *AdminHandler) UpdateAdminStatus(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	adminID, err := h.adminID(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid administrator ID")
		return
	}

	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Status == "" {
		h.respondWithError(w, http.StatusBadRequest, errors.New("status is required"), "Status is required")
		return
	}

	if err := h.adminService.UpdateStatus(ctx, adminID, req.Status, req.Note); err != nil {
		h.respondWithServiceError(w, err, "Failed to update administrator status")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Administrator status updated successfully"))
	h.logger.Info("Administrator status updated via HTTP",
		util.Int64("admin_id", adminID),
		util.String("status", req.Status),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "UpdateAdminStatus"),
	)
}

// UpdateSecondaryAuth handles secondary-auth credential rotation
// @Summary Rotate secondary-auth hash
// @Description Replace the administrator's secondary authentication hash
// @Tags admins
// @Accept json
// @Produce json
// @Param adminID path int true "Administrator ID"
// @Param request body map[string]string true "Rotation request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /admins/{adminID}/secondary-auth [patch]
func (h *AdminHandler) UpdateSecondaryAuth(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	adminID, err := h.adminID(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid administrator ID")
		return
	}

	var req struct {
		SecondaryAuthHash string `json:"secondary_auth_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.SecondaryAuthHash == "" {
		h.respondWithError(w, http.StatusBadRequest, errors.New("secondary_auth_hash is required"), "Secondary auth hash is required")
		return
	}

	if err := h.adminService.UpdateSecondaryAuthHash(ctx, adminID, req.SecondaryAuthHash); err != nil {
		h.respondWithServiceError(w, err, "Failed to rotate secondary auth hash")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Secondary auth hash updated successfully"))
	h.logger.Info("Secondary auth hash rotated via HTTP",
		util.Int64("admin_id", adminID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "UpdateSecondaryAuth"),
	)
}

// DeleteAdmin handles administrator deletion
// @Summary Delete administrator
// @Description Hard-delete an administrator account row
// @Tags admins
// @Produce json
// @Param adminID path int true "Administrator ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /admins/{adminID} [delete]
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	adminID, err := h.adminID(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid administrator ID")
		return
	}

	if err := h.adminService.Delete(ctx, adminID); err != nil {
		h.respondWithServiceError(w, err, "Failed to delete administrator")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Administrator deleted successfully"))
	h.logger.Warn("Administrator deleted via HTTP",
		util.Int64("admin_id", adminID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "DeleteAdmin"),
	)
}

// GetSelectOptions handles the administrator listing for select controls
// @Summary List administrators as select options
// @Description Get (value, label) pairs for all administrators ordered by full name
// @Tags admins
// @Produce json
// @Param selected query int false "Administrator ID to mark as selected"
// @Param prefix query bool false "Prefix values and labels with the subject type"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /admins/select-options [get]
func (h *AdminHandler) GetSelectOptions(w http.ResponseWriter, r *http.Request) {
	ctx := h.withActor(r)
	startTime := time.Now()

	var selectedID int64
	if raw := r.URL.Query().Get("selected"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, err, "Invalid selected ID")
			return
		}
		selectedID = parsed
	}

	addPrefix := false
	if raw := r.URL.Query().Get("prefix"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, err, "Invalid prefix flag")
			return
		}
		addPrefix = parsed
	}

	seq, err := h.adminService.SelectOptions(ctx, selectedID, addPrefix)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to list administrators")
		return
	}

	options := make([]model.SelectOption, 0)
	for option := range seq {
		options = append(options, option)
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(options, "Administrators retrieved successfully"))
	h.logger.Debug("Select options retrieved via HTTP",
		util.Int("count", len(options)),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "GetSelectOptions"),
	)
}

// Helper Methods

func (h *AdminHandler) withActor(r *http.Request) context.Context {
	return service.WithActor(r.Context(), r.Header.Get(actorHeader))
}

func (h *AdminHandler) adminID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "adminID"), 10, 64)
}

// respondWithJSON sends a JSON response
func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *AdminHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, errorResponse(err, message))
}

// respondWithServiceError maps a service error to its HTTP shape. Validation
// failures carry the per-field messages; the demo-account rejection is a soft
// 403 with the notice text.
func (h *AdminHandler) respondWithServiceError(w http.ResponseWriter, err error, message string) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		response := errorResponse(err, message)
		response.Fields = validationErr.Fields
		h.respondWithJSON(w, http.StatusBadRequest, response)
		return
	}

	var notFound *model.NotFoundError
	if errors.As(err, &notFound) {
		h.respondWithError(w, http.StatusNotFound, err, message)
		return
	}

	if errors.Is(err, model.ErrDemoLocked) {
		h.respondWithJSON(w, http.StatusForbidden,
			errorResponse(err, "The demo administrator cannot be modified"))
		return
	}

	h.respondWithError(w, http.StatusInternalServerError, err, message)
}
