package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/pkg/middleware"
	"github.com/fkhayef/splitledger/pkg/response"
)

// Handler handles HTTP requests for expense operations
type Handler struct {
	service *Service
	log     *logrus.Entry
}

// NewHandler creates a new expense handler
func NewHandler(service *Service, log *logrus.Entry) *Handler {
	return &Handler{service: service, log: log.WithField("component", "expense_handler")}
}

// Routes returns the router for expense endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Post("/preview", h.Preview)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Modify)
	r.Put("/{id}", h.Modify)
	r.Delete("/{id}", h.Delete)

	// Group-based listing
	r.Get("/group/{groupId}", h.ListByGroup)

	return r
}

// Create handles POST /expenses
// @Summary      Create a new expense
// @Description  Record an expense split with EQUAL, PERCENTAGE or CUSTOM. EQUAL shares are always computed by the server.
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateExpenseRequest true "Expense creation request"
// @Success      201 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /expenses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := checkBodyIDs(req.GroupID, req.PayerID, req.Participants); err != nil {
		h.writeError(w, err, "Failed to create expense")
		return
	}

	e, err := h.service.Create(r.Context(), callerID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to create expense")
		return
	}

	response.JSON(w, http.StatusCreated, e.ToResponse())
}

// Preview handles POST /expenses/preview
// @Summary      Preview an expense split
// @Description  Compute the payer's implied share and the per-participant breakdown without saving
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body PreviewRequest true "Amount, payer and the shares of everyone else"
// @Success      200 {object} response.APIResponse{data=split.Preview}
// @Failure      400 {object} response.APIResponse
// @Router       /expenses/preview [post]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := checkBodyIDs(req.GroupID, req.PayerID, req.Participants); err != nil {
		h.writeError(w, err, "Failed to preview expense")
		return
	}

	preview, err := h.service.Preview(r.Context(), callerID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to preview expense")
		return
	}

	response.JSON(w, http.StatusOK, preview)
}

// GetByID handles GET /expenses/{id}
// @Summary      Get expense by ID
// @Description  Get an expense with its participants and breakdown
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Expense ID"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	callerID, id, ok := h.callerAndParam(w, r, "id")
	if !ok {
		return
	}

	e, err := h.service.Get(r.Context(), callerID, id)
	if err != nil {
		h.writeError(w, err, "Failed to get expense")
		return
	}

	response.JSON(w, http.StatusOK, e.ToResponse())
}

// Modify handles PATCH /expenses/{id}
// @Summary      Modify an expense
// @Description  Partial update by the group owner or the payer. Split fields are re-validated; EQUAL shares are recomputed.
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Expense ID"
// @Param        request body UpdateExpenseRequest true "Fields to change"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /expenses/{id} [patch]
func (h *Handler) Modify(w http.ResponseWriter, r *http.Request) {
	callerID, id, ok := h.callerAndParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	var payerID string
	var entries []split.Participant
	if req.PayerID != nil {
		payerID = *req.PayerID
	}
	if req.Participants != nil {
		entries = *req.Participants
	}
	if err := checkBodyIDs("", payerID, entries); err != nil {
		h.writeError(w, err, "Failed to modify expense")
		return
	}

	e, err := h.service.Modify(r.Context(), callerID, id, &req)
	if err != nil {
		h.writeError(w, err, "Failed to modify expense")
		return
	}

	response.JSON(w, http.StatusOK, e.ToResponse())
}

// ListByGroup handles GET /expenses/group/{groupId}
// @Summary      List expenses by group
// @Description  Get a paginated list of a group's expenses, newest date first
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        groupId path string true "Group ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]ExpenseResponse}
// @Router       /expenses/group/{groupId} [get]
func (h *Handler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	callerID, groupID, ok := h.callerAndParam(w, r, "groupId")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	result, err := h.service.ListByGroup(r.Context(), callerID, groupID, page, perPage)
	if err != nil {
		h.writeError(w, err, "Failed to list expenses")
		return
	}

	expenseResponses := make([]*ExpenseResponse, len(result.Expenses))
	for i, e := range result.Expenses {
		expenseResponses[i] = e.ToResponse()
	}

	meta := &response.Meta{
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      result.Total,
		TotalPages: result.TotalPages(),
	}

	response.JSONWithMeta(w, http.StatusOK, expenseResponses, meta)
}

// Delete handles DELETE /expenses/{id}
// @Summary      Delete an expense
// @Description  Permanently delete an expense; group owner or payer only
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Expense ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, id, ok := h.callerAndParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), callerID, id); err != nil {
		h.writeError(w, err, "Failed to delete expense")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

func (h *Handler) callerAndParam(w http.ResponseWriter, r *http.Request, key string) (string, string, bool) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return "", "", false
	}

	value := chi.URLParam(r, key)
	if err := uuid.Validate(value); err != nil {
		response.BadRequest(w, "Invalid "+key)
		return "", "", false
	}
	return callerID, value, true
}

// checkBodyIDs rejects ids that cannot name a group or user before they reach
// a uuid column. Empty ids are left to the service's required-field checks.
func checkBodyIDs(groupID, payerID string, participants []split.Participant) error {
	if groupID != "" && uuid.Validate(groupID) != nil {
		return group.ErrGroupNotFound
	}
	if payerID != "" && uuid.Validate(payerID) != nil {
		return fmt.Errorf("%w: %s", split.ErrPayerNotMember, payerID)
	}
	for _, p := range participants {
		if p.MemberID != "" && uuid.Validate(p.MemberID) != nil {
			return fmt.Errorf("%w: %s", split.ErrParticipantNotMember, p.MemberID)
		}
	}
	return nil
}

// writeError maps service errors onto the response envelope. Anything that
// is not a known domain error is logged and reported as internal.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *split.ValidationError
	switch {
	case errors.As(err, &verr):
		response.InvalidExpense(w, string(verr.Reason), err.Error())
	case errors.Is(err, ErrExpenseNotFound), errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(w, err.Error())
	default:
		h.log.WithError(err).Error(fallback)
		response.InternalError(w, fallback)
	}
}
