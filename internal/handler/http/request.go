package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

type RequestHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Audit(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
}

type requestHandlerImpl struct {
	approvalService approval.Service
}

func NewRequestHandler(approvalService approval.Service) RequestHandler {
	return &requestHandlerImpl{approvalService: approvalService}
}

// Create implements RequestHandler.
func (h *requestHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	var req approval.CreateRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.approvalService.CreateRequest(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Request submitted", approval.NewRequestResponse(created))
}

// Get implements RequestHandler.
func (h *requestHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	req, err := h.approvalService.GetRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, approval.NewRequestResponse(req))
}

// List implements RequestHandler.
func (h *requestHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	status := approval.Status(r.URL.Query().Get("status"))
	if status != "" && status != approval.StatusPending && !status.IsTerminal() {
		var errs validator.ValidationErrors
		errs.Add("status", "status must be one of: pending, approved, rejected, cancelled")
		response.HandleError(w, errs)
		return
	}

	filter := approval.RequestFilter{
		OrgID:  actor.OrgID,
		UserID: r.URL.Query().Get("user_id"),
		Status: status,
		From:   from,
		To:     to,
		Limit:  getIntQueryParam(r, "limit", 0),
	}
	requests, err := h.approvalService.ListRequests(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]approval.RequestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, approval.NewRequestResponse(req))
	}
	response.SuccessWithMeta(w, out, listMeta(filter.From, filter.To, filter.Limit, len(out)))
}

// Audit implements RequestHandler.
func (h *requestHandlerImpl) Audit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	audits, err := h.approvalService.ListAudit(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if audits == nil {
		audits = []approval.Audit{}
	}

	response.Success(w, audits)
}

// Approve implements RequestHandler.
func (h *requestHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approvalService.Approve, "Request approved")
}

// Reject implements RequestHandler.
func (h *requestHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approvalService.Reject, "Request rejected")
}

// Cancel implements RequestHandler.
func (h *requestHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approvalService.Cancel, "Request cancelled")
}

type resolveFunc func(ctx context.Context, actor user.Actor, req approval.ResolveRequest) (approval.Request, error)

func (h *requestHandlerImpl) resolve(w http.ResponseWriter, r *http.Request, fn resolveFunc, message string) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	var req approval.ResolveRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	req.RequestID = chi.URLParam(r, "id")

	resolved, err := fn(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, message, approval.NewRequestResponse(resolved))
}
