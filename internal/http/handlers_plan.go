package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"moneyplan/internal/core"
	"moneyplan/internal/services"
	"moneyplan/internal/storage"
)

// PlanService is the application surface the API exposes.
type PlanService interface {
	StartPlan(ctx context.Context, tenantID string, input services.StartPlanInput) (core.PlanSnapshot, error)
	CopyStructure(ctx context.Context, tenantID string, sourcePlanID uuid.UUID, initialBalance core.Money, planDate time.Time, notes string) (core.PlanSnapshot, error)
	AddAccount(ctx context.Context, tenantID string, planID uuid.UUID, accountID string, buckets []core.BucketConfig, notes string) (core.PlanSnapshot, error)
	RemoveAccount(ctx context.Context, tenantID string, planID uuid.UUID, accountID string) (core.PlanSnapshot, error)
	AllocateFunds(ctx context.Context, tenantID string, planID uuid.UUID, accountID, bucketName string, amount core.Money) (core.PlanSnapshot, error)
	AdjustPlanBalance(ctx context.Context, tenantID string, planID uuid.UUID, delta core.Money) (core.PlanSnapshot, error)
	ChangeAccountConfiguration(ctx context.Context, tenantID string, planID uuid.UUID, accountID string, buckets []core.BucketConfig) (core.PlanSnapshot, error)
	SetAccountCheckedState(ctx context.Context, tenantID string, planID uuid.UUID, accountID string, isChecked bool) (core.PlanSnapshot, error)
	EditNotes(ctx context.Context, tenantID string, planID uuid.UUID, notes string) (core.PlanSnapshot, error)
	EditAccountNotes(ctx context.Context, tenantID string, planID uuid.UUID, accountID, notes string) (core.PlanSnapshot, error)
	Commit(ctx context.Context, tenantID string, planID uuid.UUID) (core.PlanSnapshot, error)
	Archive(ctx context.Context, tenantID string, planID uuid.UUID) (core.PlanSnapshot, error)
	SharePlan(ctx context.Context, tenantID string, planID uuid.UUID) (string, error)
	GetSharedPlan(ctx context.Context, token string) (core.PlanSnapshot, error)
	GetPlan(ctx context.Context, tenantID string, planID uuid.UUID) (core.PlanSnapshot, error)
	ListPlans(ctx context.Context, tenantID string, includeArchived bool, limit, offset int) ([]core.PlanSnapshot, error)
}

// AccountDirectory is the directory surface the API exposes.
type AccountDirectory interface {
	Register(ctx context.Context, accountID, displayName string) error
	List(ctx context.Context) ([]storage.DirectoryAccount, error)
}

type bucketRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Allocated string `json:"allocated,omitempty"`
}

type allocationRequest struct {
	AccountID string          `json:"account_id"`
	Notes     string          `json:"notes,omitempty"`
	Buckets   []bucketRequest `json:"buckets,omitempty"`
}

type startPlanRequest struct {
	InitialBalance     string              `json:"initial_balance"`
	PlanDate           string              `json:"plan_date"`
	Notes              string              `json:"notes,omitempty"`
	DefaultAllocations []allocationRequest `json:"default_allocations,omitempty"`
}

type copyStructureRequest struct {
	InitialBalance string `json:"initial_balance"`
	PlanDate       string `json:"plan_date"`
	Notes          string `json:"notes,omitempty"`
}

type addAccountRequest struct {
	AccountID string          `json:"account_id"`
	Notes     string          `json:"notes,omitempty"`
	Buckets   []bucketRequest `json:"buckets,omitempty"`
}

type allocateRequest struct {
	BucketName string `json:"bucket_name"`
	Amount     string `json:"amount"`
}

type reconfigureRequest struct {
	Buckets []bucketRequest `json:"buckets"`
}

type adjustBalanceRequest struct {
	Delta string `json:"delta"`
}

type checkedStateRequest struct {
	IsChecked bool `json:"is_checked"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type registerAccountRequest struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

type bucketResponse struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Allocated string `json:"allocated"`
}

type accountResponse struct {
	AccountID      string           `json:"account_id"`
	DisplayName    string           `json:"display_name"`
	IsChecked      bool             `json:"is_checked"`
	Notes          string           `json:"notes,omitempty"`
	Buckets        []bucketResponse `json:"buckets"`
	TotalAllocated string           `json:"total_allocated"`
}

type planResponse struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	InitialBalance   string            `json:"initial_balance"`
	RemainingBalance string            `json:"remaining_balance"`
	PlanDate         string            `json:"plan_date"`
	CreatedAt        string            `json:"created_at"`
	ArchivedAt       string            `json:"archived_at,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	Accounts         []accountResponse `json:"accounts"`
}

type shareResponse struct {
	ShareToken string `json:"share_token"`
}

type directoryAccountResponse struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

func toPlanResponse(snap core.PlanSnapshot) planResponse {
	resp := planResponse{
		ID:               snap.ID.String(),
		Status:           string(planStatus(snap)),
		InitialBalance:   snap.InitialBalance.String(),
		RemainingBalance: snap.RemainingBalance.String(),
		PlanDate:         snap.PlanDate.Format("2006-01-02"),
		CreatedAt:        snap.CreatedAt.Format(time.RFC3339),
		Notes:            snap.Notes,
		Accounts:         make([]accountResponse, 0, len(snap.Accounts)),
	}
	if snap.Archived {
		resp.ArchivedAt = snap.ArchivedAt.Format(time.RFC3339)
	}
	for _, acc := range snap.Accounts {
		total := core.ZeroMoney()
		buckets := make([]bucketResponse, 0, len(acc.Buckets))
		for _, b := range acc.Buckets {
			total = total.Add(b.Allocated)
			buckets = append(buckets, bucketResponse{
				Name:      b.Name,
				Category:  b.Category,
				Allocated: b.Allocated.String(),
			})
		}
		resp.Accounts = append(resp.Accounts, accountResponse{
			AccountID:      acc.AccountID,
			DisplayName:    acc.DisplayName,
			IsChecked:      acc.IsChecked,
			Notes:          acc.Notes,
			Buckets:        buckets,
			TotalAllocated: total.String(),
		})
	}
	return resp
}

func planStatus(snap core.PlanSnapshot) core.PlanStatus {
	switch {
	case snap.Archived:
		return core.StatusArchived
	case snap.Committed:
		return core.StatusCommitted
	default:
		return core.StatusDraft
	}
}

// tenantID extracts the tenant from the request. Single-user deployments can
// omit the header and share the default tenant.
func tenantID(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("X-Tenant-ID")); t != "" {
		return t
	}
	return "default"
}

func planIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid plan id")
	}
	return id, nil
}

func toBucketConfigs(reqs []bucketRequest) ([]core.BucketConfig, error) {
	configs := make([]core.BucketConfig, 0, len(reqs))
	for _, b := range reqs {
		allocated := core.ZeroMoney()
		if b.Allocated != "" {
			var err error
			allocated, err = parseMoney("allocated", b.Allocated)
			if err != nil {
				return nil, err
			}
		}
		configs = append(configs, core.BucketConfig{
			Name:      b.Name,
			Category:  b.Category,
			Allocated: allocated,
		})
	}
	return configs, nil
}

func (s *Server) handleStartPlan(w http.ResponseWriter, r *http.Request) {
	var req startPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := parseMoney("initial_balance", req.InitialBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	planDate, err := parseDate("plan_date", req.PlanDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	input := services.StartPlanInput{
		InitialBalance: balance,
		PlanDate:       planDate,
		Notes:          req.Notes,
	}
	for _, alloc := range req.DefaultAllocations {
		buckets, err := toBucketConfigs(alloc.Buckets)
		if err != nil {
			writeError(w, r, err)
			return
		}
		input.DefaultAllocations = append(input.DefaultAllocations, services.AllocationInput{
			AccountID: alloc.AccountID,
			Notes:     alloc.Notes,
			Buckets:   buckets,
		})
	}

	snap, err := s.service.StartPlan(r.Context(), tenantID(r), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(snap))
}

func (s *Server) handleCopyStructure(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req copyStructureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := parseMoney("initial_balance", req.InitialBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	planDate, err := parseDate("plan_date", req.PlanDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.CopyStructure(r.Context(), tenantID(r), planID, balance, planDate, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(snap))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	snaps, err := s.service.ListPlans(r.Context(), tenantID(r), includeArchived, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]planResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toPlanResponse(snap))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.service.GetPlan(r.Context(), tenantID(r), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.AccountID) == "" {
		writeError(w, r, badRequest("account_id is required"))
		return
	}
	buckets, err := toBucketConfigs(req.Buckets)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.AddAccount(r.Context(), tenantID(r), planID, req.AccountID, buckets, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.service.RemoveAccount(r.Context(), tenantID(r), planID, r.PathValue("accountID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req allocateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.AllocateFunds(r.Context(), tenantID(r), planID,
		r.PathValue("accountID"), req.BucketName, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleReconfigureAccount(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reconfigureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	buckets, err := toBucketConfigs(req.Buckets)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.ChangeAccountConfiguration(r.Context(), tenantID(r), planID,
		r.PathValue("accountID"), buckets)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleSetChecked(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req checkedStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.SetAccountCheckedState(r.Context(), tenantID(r), planID,
		r.PathValue("accountID"), req.IsChecked)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleEditAccountNotes(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.EditAccountNotes(r.Context(), tenantID(r), planID,
		r.PathValue("accountID"), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req adjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	delta, err := parseMoney("delta", req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.AdjustPlanBalance(r.Context(), tenantID(r), planID, delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleEditNotes(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.service.EditNotes(r.Context(), tenantID(r), planID, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.service.Commit(r.Context(), tenantID(r), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.service.Archive(r.Context(), tenantID(r), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	planID, err := planIDFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.service.SharePlan(r.Context(), tenantID(r), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{ShareToken: token})
}

func (s *Server) handleGetSharedPlan(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetSharedPlan(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(snap))
}

func (s *Server) handleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.AccountID) == "" || strings.TrimSpace(req.DisplayName) == "" {
		writeError(w, r, badRequest("account_id and display_name are required"))
		return
	}
	if err := s.directory.Register(r.Context(), req.AccountID, req.DisplayName); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, directoryAccountResponse{
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.directory.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]directoryAccountResponse, 0, len(list))
	for _, acc := range list {
		out = append(out, directoryAccountResponse{
			AccountID:   acc.ID,
			DisplayName: acc.DisplayName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
