package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/access-control-plane/middleware"
	"github.com/upb/access-control-plane/savedobjects"
	"github.com/upb/access-control-plane/utils"
	"go.uber.org/zap"
)

// dashboardType is the saved object type backing the dashboards API.
const dashboardType = "dashboard"

// DashboardAttributes is the dashboard payload stored in the saved object.
type DashboardAttributes struct {
	Title       string          `json:"title" validate:"required,min=1,max=255"`
	Description string          `json:"description,omitempty" validate:"max=2048"`
	Panels      json.RawMessage `json:"panels,omitempty"`
}

// BulkCreateDashboardsRequest represents a request to create several
// dashboards in one call
type BulkCreateDashboardsRequest struct {
	Dashboards []DashboardAttributes `json:"dashboards" validate:"required,min=1,dive"`
}

// DashboardResponse represents a dashboard in API responses
type DashboardResponse struct {
	ID         uuid.UUID       `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

// DashboardHandler handles dashboard-related HTTP requests. All storage goes
// through per-request scoped clients, so every call carries the caller's own
// privileges.
type DashboardHandler struct {
	savedObjects *savedobjects.SecureClientFactory
	logger       *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(savedObjects *savedobjects.SecureClientFactory, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		savedObjects: savedObjects,
		logger:       logger,
	}
}

// client builds the saved-objects client scoped to the request's principal.
func (h *DashboardHandler) client(r *http.Request) savedobjects.Client {
	principal := middleware.GetPrincipalFromContext(r.Context())
	requestID := chimiddleware.GetReqID(r.Context())
	return h.savedObjects.ScopedClient(principal, requestID)
}

// HandleListDashboards handles GET /api/dashboards
func (h *DashboardHandler) HandleListDashboards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	opts := savedobjects.FindOptions{Type: dashboardType}
	if perPage := r.URL.Query().Get("per_page"); perPage != "" {
		parsed, err := strconv.Atoi(perPage)
		if err != nil || parsed < 1 {
			_ = utils.WriteBadRequest(w, "Invalid per_page value", nil)
			return
		}
		opts.PerPage = parsed
	}
	if page := r.URL.Query().Get("page"); page != "" {
		parsed, err := strconv.Atoi(page)
		if err != nil || parsed < 1 {
			_ = utils.WriteBadRequest(w, "Invalid page value", nil)
			return
		}
		opts.Page = parsed
	}

	objects, err := h.client(r).Find(ctx, opts)
	if err != nil {
		h.writeStorageError(w, requestID, "list dashboards", err)
		return
	}

	responses := make([]DashboardResponse, len(objects))
	for i, obj := range objects {
		responses[i] = dashboardToResponse(obj)
	}

	h.logger.Info("listed dashboards",
		zap.String("request_id", requestID),
		zap.Int("count", len(responses)))

	_ = utils.WriteOK(w, responses)
}

// HandleGetDashboard handles GET /api/dashboards/{id}
func (h *DashboardHandler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid dashboard ID format", nil)
		return
	}

	obj, err := h.client(r).Get(ctx, dashboardType, id)
	if err != nil {
		h.writeStorageError(w, requestID, "get dashboard", err)
		return
	}

	_ = utils.WriteOK(w, dashboardToResponse(obj))
}

// HandleCreateDashboard handles POST /api/dashboards
func (h *DashboardHandler) HandleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	var req DashboardAttributes
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		writeValidationError(w, err)
		return
	}

	attrs, err := json.Marshal(req)
	if err != nil {
		_ = utils.WriteInternalServerError(w, "Failed to encode dashboard")
		return
	}

	obj, err := h.client(r).Create(ctx, savedobjects.New(dashboardType, attrs))
	if err != nil {
		h.writeStorageError(w, requestID, "create dashboard", err)
		return
	}

	h.logger.Info("dashboard created",
		zap.String("request_id", requestID),
		zap.String("dashboard_id", obj.ID.String()))

	_ = utils.WriteCreated(w, dashboardToResponse(obj))
}

// HandleBulkCreateDashboards handles POST /api/dashboards/_bulk_create
func (h *DashboardHandler) HandleBulkCreateDashboards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	var req BulkCreateDashboardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		writeValidationError(w, err)
		return
	}

	objs := make([]*savedobjects.SavedObject, 0, len(req.Dashboards))
	for _, attrs := range req.Dashboards {
		encoded, err := json.Marshal(attrs)
		if err != nil {
			_ = utils.WriteInternalServerError(w, "Failed to encode dashboard")
			return
		}
		objs = append(objs, savedobjects.New(dashboardType, encoded))
	}

	created, err := h.client(r).BulkCreate(ctx, objs)
	if err != nil {
		h.writeStorageError(w, requestID, "bulk create dashboards", err)
		return
	}

	responses := make([]DashboardResponse, len(created))
	for i, obj := range created {
		responses[i] = dashboardToResponse(obj)
	}

	h.logger.Info("dashboards created",
		zap.String("request_id", requestID),
		zap.Int("count", len(responses)))

	_ = utils.WriteCreated(w, responses)
}

// HandleUpdateDashboard handles PUT /api/dashboards/{id}
func (h *DashboardHandler) HandleUpdateDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid dashboard ID format", nil)
		return
	}

	var req DashboardAttributes
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		writeValidationError(w, err)
		return
	}

	attrs, err := json.Marshal(req)
	if err != nil {
		_ = utils.WriteInternalServerError(w, "Failed to encode dashboard")
		return
	}

	obj := &savedobjects.SavedObject{
		ID:         id,
		Type:       dashboardType,
		Attributes: attrs,
	}

	updated, err := h.client(r).Update(ctx, obj)
	if err != nil {
		h.writeStorageError(w, requestID, "update dashboard", err)
		return
	}

	h.logger.Info("dashboard updated",
		zap.String("request_id", requestID),
		zap.String("dashboard_id", id.String()))

	_ = utils.WriteOK(w, dashboardToResponse(updated))
}

// HandleDeleteDashboard handles DELETE /api/dashboards/{id}
func (h *DashboardHandler) HandleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid dashboard ID format", nil)
		return
	}

	if err := h.client(r).Delete(ctx, dashboardType, id); err != nil {
		h.writeStorageError(w, requestID, "delete dashboard", err)
		return
	}

	h.logger.Info("dashboard deleted",
		zap.String("request_id", requestID),
		zap.String("dashboard_id", id.String()))

	utils.WriteNoContent(w)
}

// writeStorageError maps saved-objects errors to HTTP responses. Denials from
// the secure client carry the missing privileges; they surface as 403 with
// details because the caller already proved the route exists by holding the
// route-level privilege.
func (h *DashboardHandler) writeStorageError(w http.ResponseWriter, requestID, operation string, err error) {
	var forbidden *savedobjects.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		missing := make([]string, len(forbidden.Missing))
		for i, a := range forbidden.Missing {
			missing[i] = string(a)
		}
		h.logger.Warn("storage operation denied",
			zap.String("request_id", requestID),
			zap.String("operation", operation),
			zap.String("username", forbidden.Username))
		_ = utils.WriteForbidden(w, forbidden.Error(), map[string]interface{}{
			"missing": missing,
		})
	case errors.Is(err, savedobjects.ErrNotFound):
		_ = utils.WriteNotFound(w, "Dashboard not found")
	case errors.Is(err, savedobjects.ErrUnknownType), errors.Is(err, savedobjects.ErrUnsupportedOperation):
		_ = utils.WriteBadRequest(w, err.Error(), nil)
	default:
		h.logger.Error("storage operation failed",
			zap.String("request_id", requestID),
			zap.String("operation", operation),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Storage operation failed")
	}
}

// dashboardToResponse converts a saved object to a DashboardResponse
func dashboardToResponse(obj *savedobjects.SavedObject) DashboardResponse {
	return DashboardResponse{
		ID:         obj.ID,
		Attributes: obj.Attributes,
		CreatedAt:  obj.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  obj.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeValidationError writes a 400 with per-field messages when err is a
// validation error, and a generic 400 otherwise.
func writeValidationError(w http.ResponseWriter, err error) {
	if fields := utils.GetValidationFields(err); fields != nil {
		details := make(map[string]interface{}, len(fields))
		for field, msg := range fields {
			details[field] = msg
		}
		_ = utils.WriteBadRequest(w, "Validation failed", details)
		return
	}
	_ = utils.WriteBadRequest(w, err.Error(), nil)
}
