package httpapi

import (
	"math"
	"net/http"
	"time"

	editlock "go-editlock"
)

const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

type acquireRequest struct {
	Holder     string `json:"holder"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
	CoEditing  bool   `json:"co_editing,omitempty"`
}

type acquireResponse struct {
	OK        bool      `json:"ok"`
	Outcome   string    `json:"outcome"`
	LeaseKey  string    `json:"lease_key"`
	SessionID string    `json:"session_id,omitempty"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

type lockStatusResponse struct {
	CanEdit   bool       `json:"can_edit"`
	Reason    string     `json:"reason"`
	Holder    string     `json:"holder,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LeaseKey  string     `json:"lease_key,omitempty"`
}

type leaseResponse struct {
	DocumentID string    `json:"document_id"`
	VersionSeq int       `json:"version_seq"`
	LeaseKey   string    `json:"lease_key"`
	Holder     string    `json:"holder"`
	SessionID  string    `json:"session_id"`
	CoEditing  bool      `json:"co_editing"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type memberResponse struct {
	Holder    string    `json:"holder"`
	LeaseKey  string    `json:"lease_key"`
	JoinedAt  time.Time `json:"joined_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionStatusResponse struct {
	Active    bool             `json:"active"`
	SessionID string           `json:"session_id,omitempty"`
	CoEditing bool             `json:"co_editing"`
	Members   []memberResponse `json:"members"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

type writePlanRequest struct {
	Holder     string `json:"holder"`
	VersionSeq int    `json:"version_seq,omitempty"`
	Format     string `json:"format,omitempty"`
	NewVersion bool   `json:"new_version,omitempty"`
	Changelog  string `json:"changelog,omitempty"`
}

type writePlanResponse struct {
	CreateNew        bool               `json:"create_new"`
	LockVersionSeq   int                `json:"lock_version_seq"`
	VersionSeq       int                `json:"version_seq"`
	ReplacesExisting bool               `json:"replaces_existing"`
	Changelog        string             `json:"changelog"`
	State            string             `json:"state"`
	Lock             lockStatusResponse `json:"lock"`
}

type removedResponse struct {
	Removed bool `json:"removed"`
}

type sweepResponse struct {
	Removed int64 `json:"removed"`
}

func (h *Handler) handleAcquire(w http.ResponseWriter, r *http.Request) error {
	target, err := targetFromPath(r)
	if err != nil {
		return err
	}
	var req acquireRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.engine.Acquire(r.Context(), target, req.Holder, ttlFromSeconds(req.TTLSeconds), req.CoEditing)
	if err != nil {
		return err
	}

	var status = http.StatusOK
	if !result.OK {
		status = http.StatusLocked
	}
	h.writeJSON(w, status, acquireResponse{
		OK:        result.OK,
		Outcome:   string(result.Outcome),
		LeaseKey:  result.LeaseKey,
		SessionID: result.SessionID,
		Holder:    result.Holder,
		ExpiresAt: result.ExpiresAt,
		Message:   result.Message,
	})
	return nil
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) error {
	target, err := targetFromPath(r)
	if err != nil {
		return err
	}
	holder, err := requiredQuery(r, "holder")
	if err != nil {
		return err
	}

	status, err := h.engine.CanWrite(r.Context(), target, holder)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, toLockStatus(status))
	return nil
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) error {
	target, err := targetFromPath(r)
	if err != nil {
		return err
	}
	holder, err := requiredQuery(r, "holder")
	if err != nil {
		return err
	}

	removed, err := h.engine.Release(r.Context(), target, holder)
	if err != nil {
		return err
	}
	if !removed {
		return httpError{Status: http.StatusNotFound, Code: "lease_not_found", Detail: "no lease held by " + holder}
	}
	h.writeJSON(w, http.StatusOK, removedResponse{Removed: true})
	return nil
}

func (h *Handler) handleCoEditors(w http.ResponseWriter, r *http.Request) error {
	target, err := targetFromPath(r)
	if err != nil {
		return err
	}

	holders, err := h.engine.ListCoEditors(r.Context(), target)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"holders": holders})
	return nil
}

func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) error {
	target, err := targetFromPath(r)
	if err != nil {
		return err
	}

	var resp = sessionStatusResponse{Members: []memberResponse{}}
	info, err := h.engine.Session(r.Context(), target)
	switch {
	case err == nil:
		resp.Active = true
		resp.SessionID = info.ID
		resp.CoEditing = info.CoEditing
		for _, m := range info.Members {
			resp.Members = append(resp.Members, memberResponse(m))
		}
	case isNotFound(err):
	default:
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) error {
	target, err := targetFromPath(r)
	if err != nil {
		return err
	}
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	removed, err := h.engine.EndSession(r.Context(), target, req.SessionID)
	if err != nil {
		return err
	}
	if !removed {
		return httpError{Status: http.StatusNotFound, Code: "session_not_found", Detail: "no lease in session " + req.SessionID}
	}
	h.writeJSON(w, http.StatusOK, removedResponse{Removed: true})
	return nil
}

func (h *Handler) handleWritePlan(w http.ResponseWriter, r *http.Request) error {
	if h.docs == nil {
		return httpError{Status: http.StatusNotImplemented, Code: "documents_unavailable", Detail: "no document provider configured"}
	}
	var req writePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Holder == "" {
		return httpError{Status: http.StatusBadRequest, Code: "missing_holder", Detail: "holder is required"}
	}

	plan, err := editlock.PlanWrite(r.Context(), h.docs, editlock.WriteRequest{
		DocumentID: r.PathValue("id"),
		VersionSeq: req.VersionSeq,
		Format:     editlock.Format(req.Format),
		RequestNew: req.NewVersion,
		Changelog:  req.Changelog,
	})
	if err != nil {
		return err
	}

	lock, err := h.engine.CanWrite(r.Context(), plan.Target, req.Holder)
	if err != nil {
		return err
	}

	var status = http.StatusOK
	if !lock.CanEdit {
		status = http.StatusLocked
	}
	h.writeJSON(w, status, writePlanResponse{
		CreateNew:        plan.CreateNew,
		LockVersionSeq:   plan.Target.VersionSeq,
		VersionSeq:       plan.VersionSeq,
		ReplacesExisting: plan.ReplacesExisting,
		Changelog:        plan.Changelog,
		State:            string(plan.State),
		Lock:             toLockStatus(lock),
	})
	return nil
}

func (h *Handler) handleLocks(w http.ResponseWriter, r *http.Request) error {
	var (
		leases []editlock.Lease
		err    error
	)
	if holder := r.URL.Query().Get("holder"); holder != "" {
		leases, err = h.engine.LeasesHeldBy(r.Context(), holder)
	} else {
		leases, err = h.engine.ListActive(r.Context())
	}
	if err != nil {
		return err
	}

	var resp = make([]leaseResponse, 0, len(leases))
	for _, l := range leases {
		resp = append(resp, leaseResponse{
			DocumentID: l.DocumentID,
			VersionSeq: l.VersionSeq,
			LeaseKey:   l.LeaseKey,
			Holder:     l.Holder,
			SessionID:  l.SessionID,
			CoEditing:  l.CoEditing,
			CreatedAt:  l.CreatedAt,
			ExpiresAt:  l.ExpiresAt,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string][]leaseResponse{"locks": resp})
	return nil
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) error {
	removed, err := h.engine.Sweep(r.Context())
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, sweepResponse{Removed: removed})
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) error {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// ttlFromSeconds converts without overflow; durations past the int64 range
// saturate and are clamped to the max TTL by the engine.
func ttlFromSeconds(seconds int64) time.Duration {
	if seconds > maxTTLSeconds {
		return time.Duration(math.MaxInt64)
	}
	if seconds < -maxTTLSeconds {
		return time.Duration(math.MinInt64)
	}
	return time.Duration(seconds) * time.Second
}

func toLockStatus(status editlock.LockStatus) lockStatusResponse {
	var resp = lockStatusResponse{
		CanEdit:  status.CanEdit,
		Reason:   status.Reason,
		Holder:   status.Holder,
		LeaseKey: status.LeaseKey,
	}
	if !status.ExpiresAt.IsZero() {
		var expiresAt = status.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
