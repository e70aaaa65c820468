package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wifeyapp/appgate/internal/cache"
	"github.com/wifeyapp/appgate/internal/gate"
	"github.com/wifeyapp/appgate/internal/logging"
	"github.com/wifeyapp/appgate/internal/models"
	"github.com/wifeyapp/appgate/internal/session"
)

type gateHandler struct {
	resolver   *gate.Resolver
	supervisor *gate.Supervisor
	cache      *cache.Cache
	sessions   *session.Store
	log        logging.Logger
}

func newGateHandler(deps RouterDeps) *gateHandler {
	log := deps.Log
	if log == nil {
		log = logging.Nop{}
	}
	return &gateHandler{
		resolver:   deps.Resolver,
		supervisor: deps.Supervisor,
		cache:      deps.Cache,
		sessions:   deps.Sessions,
		log:        log,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *gateHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type targetResponse struct {
	Target models.Target `json:"target"`
	Route  string        `json:"route"`
}

// Target runs the one-shot initial resolution. The resolution is idempotent
// and side-effect-bounded, so re-running it per request is safe.
func (h *gateHandler) Target(w http.ResponseWriter, r *http.Request) {
	target := h.resolver.ResolveInitialTarget(r.Context())
	writeJSON(w, http.StatusOK, targetResponse{Target: target, Route: target.Route()})
}

type flagsResponse struct {
	Flags       models.GateFlags `json:"flags"`
	ForcedRoute string           `json:"forcedRoute,omitempty"`
	Forced      bool             `json:"forced"`
}

// Flags returns the flag snapshot plus the forced route for the shell's
// current path. The shell must obey a forced route over whatever screen the
// user navigated to. Both values come from the same snapshot, so they cannot
// disagree under a concurrent check.
func (h *gateHandler) Flags(w http.ResponseWriter, r *http.Request) {
	snap := h.supervisor.Flags().Snapshot()
	route, forced := gate.ForcedRouteFor(snap, r.URL.Query().Get("path"))
	writeJSON(w, http.StatusOK, flagsResponse{
		Flags:       snap,
		ForcedRoute: route,
		Forced:      forced,
	})
}

type navigationRequest struct {
	Path string `json:"path"`
}

// Navigation supersedes any in-flight checks and starts fresh ones for the
// path the shell just navigated to.
func (h *gateHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	var req navigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	// Checks outlive the notification request; detach from its cancellation.
	h.supervisor.OnNavigate(context.WithoutCancel(r.Context()), req.Path)
	w.WriteHeader(http.StatusAccepted)
}

// MarkOnboardingSeen records the explicit intro acknowledgment. The onboarding
// screen calls this when the user taps through; nothing else ever writes the
// flag.
func (h *gateHandler) MarkOnboardingSeen(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.MarkOnboardingSeen(r.Context()); err != nil {
		h.log.Error(r.Context(), "onboarding acknowledgment failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userRequest struct {
	User models.UserRecord `json:"user"`
}

// PutUser seeds the cached user record. Phone-OTP sign-ins carry an opaque
// token the reconcile path cannot use, so the shell hands over the record it
// received from the auth response.
func (h *gateHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User.ID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if err := h.cache.SaveUser(r.Context(), req.User); err != nil {
		h.log.Error(r.Context(), "user seed failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionRequest struct {
	Token string `json:"token"`
}

func (h *gateHandler) SetSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	h.sessions.Set(req.Token)
	h.supervisor.OnSessionChange(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// ClearSession signs the user out: the web session goes away, and so does the
// cached legacy identity — keeping it would let a new sign-in inherit a stale
// user id.
func (h *gateHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear()
	if err := h.cache.ClearIdentity(r.Context()); err != nil {
		h.log.Error(r.Context(), "sign-out cache cleanup failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
