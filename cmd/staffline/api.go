package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
	"github.com/staffline-labs/staffline-go/internal/repo"
	"github.com/staffline-labs/staffline-go/internal/service/approvals"
	"github.com/staffline-labs/staffline-go/internal/service/contracts"
)

type stafflineAPI struct {
	logger    *slog.Logger
	approvals *approvals.Service
	contracts *contracts.Service
}

func newStafflineAPI(logger *slog.Logger, approvalSvc *approvals.Service, contractSvc *contracts.Service) *stafflineAPI {
	return &stafflineAPI{logger: logger, approvals: approvalSvc, contracts: contractSvc}
}

func (api *stafflineAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /projects", api.handleListProjects)
	mux.HandleFunc("POST /projects", api.handleCreateProject)
	mux.HandleFunc("GET /projects/{project_id}", api.handleGetProject)
	mux.HandleFunc("PATCH /projects/{project_id}", api.handleUpdateProject)
	mux.HandleFunc("POST /projects/{project_id}/submit", api.handleSubmitProject)
	mux.HandleFunc("POST /projects/{project_id}/resubmit", api.handleResubmitProject)
	mux.HandleFunc("POST /projects/{project_id}/approve", api.handleApproveProject)
	mux.HandleFunc("POST /projects/{project_id}/reject", api.handleRejectProject)
	mux.HandleFunc("POST /projects/{project_id}/cancel", api.handleCancelProject)
	mux.HandleFunc("POST /projects/{project_id}/refresh-progress", api.handleRefreshProgress)
	mux.HandleFunc("GET /projects/{project_id}/approval-requests", api.handleListApprovalRequests)
	mux.HandleFunc("GET /projects/{project_id}/contracts", api.handleListProjectContracts)

	mux.HandleFunc("GET /contracts", api.handleListContracts)
	mux.HandleFunc("POST /contracts", api.handleCreateContract)
	mux.HandleFunc("GET /contracts/{contract_id}", api.handleGetContract)
	mux.HandleFunc("PATCH /contracts/{contract_id}", api.handleUpdateContract)
	mux.HandleFunc("POST /contracts/{contract_id}/renew", api.handleRenewContract)
	mux.HandleFunc("POST /contracts/{contract_id}/terminate", api.handleTerminateContract)
	mux.HandleFunc("GET /contracts/{contract_id}/chain", api.handleRenewalChain)
}

type projectRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	DepartmentID      *string `json:"department_id"`
	StartDate         *string `json:"start_date"`
	EndDate           *string `json:"end_date"`
	Budget            *int64  `json:"budget"`
	RequiredHeadcount *int    `json:"required_headcount"`
}

type remarksRequest struct {
	Remarks string `json:"remarks"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type createContractRequest struct {
	ProjectID    string `json:"project_id"`
	StaffID      string `json:"staff_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Rate         int64  `json:"rate"`
	ContractType string `json:"contract_type"`
	Remarks      string `json:"remarks"`
}

type updateContractRequest struct {
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	Rate         *int64  `json:"rate"`
	ContractType *string `json:"contract_type"`
	Remarks      *string `json:"remarks"`
}

type renewContractRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Rate      int64  `json:"rate"`
	Remarks   string `json:"remarks"`
}

type terminateContractRequest struct {
	TerminationDate string `json:"termination_date"`
	Reason          string `json:"reason"`
}

func (api *stafflineAPI) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, ok := api.limitParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	projects, err := api.approvals.ListProjects(r.Context(), repo.ProjectFilter{
		Status:       domain.ProjectStatus(strings.TrimSpace(q.Get("status"))),
		RequesterID:  strings.TrimSpace(q.Get("requester_id")),
		DepartmentID: strings.TrimSpace(q.Get("department_id")),
		Limit:        limit,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, newProjectResponse(p))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (api *stafflineAPI) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.StartDate == nil || req.EndDate == nil {
		api.writeError(w, r, http.StatusBadRequest, "period_required")
		return
	}
	period, err := domain.ParseDateRange(*req.StartDate, *req.EndDate)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_date")
		return
	}
	draft := domain.ProjectDraft{
		Name:         deref(req.Name),
		Description:  deref(req.Description),
		DepartmentID: deref(req.DepartmentID),
		Period:       period,
	}
	if req.Budget != nil {
		draft.Budget = *req.Budget
	}
	if req.RequiredHeadcount != nil {
		draft.RequiredHeadcount = *req.RequiredHeadcount
	}

	p, err := api.approvals.CreateProject(r.Context(), identity.Subject, draft)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, newProjectResponse(p))
}

func (api *stafflineAPI) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := api.approvals.GetProject(r.Context(), r.PathValue("project_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	changes := domain.ProjectChanges{
		Name:              req.Name,
		Description:       req.Description,
		DepartmentID:      req.DepartmentID,
		Budget:            req.Budget,
		RequiredHeadcount: req.RequiredHeadcount,
	}
	if req.StartDate != nil || req.EndDate != nil {
		if req.StartDate == nil || req.EndDate == nil {
			api.writeError(w, r, http.StatusBadRequest, "period_requires_both_dates")
			return
		}
		period, err := domain.ParseDateRange(*req.StartDate, *req.EndDate)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_date")
			return
		}
		changes.Period = &period
	}

	p, err := api.approvals.UpdateProject(r.Context(), r.PathValue("project_id"), identity.Subject, changes)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleSubmitProject(w http.ResponseWriter, r *http.Request) {
	api.handleSubmission(w, r, api.approvals.SubmitForApproval)
}

func (api *stafflineAPI) handleResubmitProject(w http.ResponseWriter, r *http.Request) {
	api.handleSubmission(w, r, api.approvals.Resubmit)
}

type submitFunc func(ctx context.Context, projectID, actorID, remarks string) (domain.Project, error)

func (api *stafflineAPI) handleSubmission(w http.ResponseWriter, r *http.Request, submit submitFunc) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req remarksRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	p, err := submit(r.Context(), r.PathValue("project_id"), identity.Subject, req.Remarks)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleApproveProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	p, err := api.approvals.Approve(r.Context(), r.PathValue("project_id"), identity.Subject, req.Comment)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleRejectProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	p, err := api.approvals.Reject(r.Context(), r.PathValue("project_id"), identity.Subject, req.Reason)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleCancelProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	p, err := api.approvals.CancelProject(r.Context(), r.PathValue("project_id"), identity.Subject, req.Reason)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleRefreshProgress(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	p, err := api.approvals.RefreshProgress(r.Context(), r.PathValue("project_id"), identity.Subject)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (api *stafflineAPI) handleListApprovalRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := api.approvals.ListApprovalRequests(r.Context(), r.PathValue("project_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]approvalRequestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, newApprovalRequestResponse(req))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"approval_requests": out})
}

func (api *stafflineAPI) handleListProjectContracts(w http.ResponseWriter, r *http.Request) {
	api.listContracts(w, r, repo.ContractFilter{ProjectID: r.PathValue("project_id")})
}

func (api *stafflineAPI) handleListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	api.listContracts(w, r, repo.ContractFilter{
		ProjectID: strings.TrimSpace(q.Get("project_id")),
		StaffID:   strings.TrimSpace(q.Get("staff_id")),
	})
}

func (api *stafflineAPI) listContracts(w http.ResponseWriter, r *http.Request, filter repo.ContractFilter) {
	limit, ok := api.limitParam(w, r)
	if !ok {
		return
	}
	filter.Limit = limit
	filter.Status = domain.ContractStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	list, err := api.contracts.ListContracts(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"contracts": newContractResponses(list)})
}

func (api *stafflineAPI) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req createContractRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	period, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_date")
		return
	}
	c, err := api.contracts.CreateContract(r.Context(), identity.Subject, domain.ContractDraft{
		ProjectID:    req.ProjectID,
		StaffID:      req.StaffID,
		Period:       period,
		Rate:         req.Rate,
		ContractType: domain.ContractType(strings.TrimSpace(req.ContractType)),
		Remarks:      req.Remarks,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, newContractResponse(c))
}

func (api *stafflineAPI) handleGetContract(w http.ResponseWriter, r *http.Request) {
	c, err := api.contracts.GetContract(r.Context(), r.PathValue("contract_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newContractResponse(c))
}

func (api *stafflineAPI) handleUpdateContract(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req updateContractRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	changes := domain.ContractChanges{Rate: req.Rate, Remarks: req.Remarks}
	if req.ContractType != nil {
		ct := domain.ContractType(strings.TrimSpace(*req.ContractType))
		changes.ContractType = &ct
	}
	if req.StartDate != nil || req.EndDate != nil {
		if req.StartDate == nil || req.EndDate == nil {
			api.writeError(w, r, http.StatusBadRequest, "period_requires_both_dates")
			return
		}
		period, err := domain.ParseDateRange(*req.StartDate, *req.EndDate)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_date")
			return
		}
		changes.Period = &period
	}
	c, err := api.contracts.UpdateContract(r.Context(), r.PathValue("contract_id"), identity.Subject, changes)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newContractResponse(c))
}

func (api *stafflineAPI) handleRenewContract(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req renewContractRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	period, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_date")
		return
	}
	res, err := api.contracts.RenewContract(r.Context(), r.PathValue("contract_id"), identity.Subject, period, req.Rate, req.Remarks)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, map[string]any{
		"predecessor": newContractResponse(res.Predecessor),
		"successor":   newContractResponse(res.Successor),
		"continuity": map[string]any{
			"kind":    string(res.Continuity.Kind),
			"days":    res.Continuity.Days,
			"flagged": res.Continuity.Flagged,
		},
	})
}

func (api *stafflineAPI) handleTerminateContract(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req terminateContractRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	at, err := domain.ParseDate(req.TerminationDate)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_date")
		return
	}
	c, err := api.contracts.TerminateContract(r.Context(), r.PathValue("contract_id"), identity.Subject, at, req.Reason)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, newContractResponse(c))
}

func (api *stafflineAPI) handleRenewalChain(w http.ResponseWriter, r *http.Request) {
	chain, err := api.contracts.RenewalChain(r.Context(), r.PathValue("contract_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"contracts": newContractResponses(chain)})
}

func (api *stafflineAPI) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

func (api *stafflineAPI) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 100, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 500 {
		api.writeError(w, r, http.StatusBadRequest, "invalid_limit")
		return 0, false
	}
	return limit, true
}

// writeServiceError maps workflow error kinds onto HTTP statuses. Anything
// that is not a workflow error is logged and reported as a 500.
func (api *stafflineAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		api.logger.Error("request failed", "request_id", r.Header.Get("X-Request-Id"), "path", r.URL.Path, "error", err.Error())
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	status := http.StatusInternalServerError
	switch de.Kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindAuthorization:
		status = http.StatusForbidden
	case domain.KindInvalidState, domain.KindConcurrency:
		status = http.StatusConflict
	}
	body := map[string]any{
		"error":      string(de.Kind),
		"request_id": r.Header.Get("X-Request-Id"),
	}
	if de.Field != "" {
		body["field"] = de.Field
	}
	if de.Entity != "" {
		body["entity"] = de.Entity
	}
	if de.From != "" || de.To != "" {
		body["from"] = de.From
		body["to"] = de.To
	}
	if de.Message != "" {
		body["message"] = de.Message
	}
	api.writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body for endpoints whose fields are all
// optional, including chunked requests that carry no bytes.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (api *stafflineAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *stafflineAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
