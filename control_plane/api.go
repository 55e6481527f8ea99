package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/liuqk23/PileFlow/control_plane/auth"
	"github.com/liuqk23/PileFlow/control_plane/idempotency"
	"github.com/liuqk23/PileFlow/control_plane/middleware"
	"github.com/liuqk23/PileFlow/control_plane/observability"
	"github.com/liuqk23/PileFlow/control_plane/scheduler"
	"github.com/liuqk23/PileFlow/control_plane/store"
)

const (
	retSuccess = 0
	retFail    = -1
)

// amountPattern matches 2-dp decimal strings like "7.00".
var amountPattern = regexp.MustCompile(`^\d+\.\d{2}$`)

// API holds the HTTP surface over the scheduler and the store.
type API struct {
	store store.Store
	sched *scheduler.Scheduler
	auth  *auth.Service

	wsHub       *MonitorHub
	idempotency *idempotency.Store

	// Storm Protection
	previewLimiter *rate.Limiter
	submitLimiter  *rate.Limiter
}

// NewAPI wires the API over its collaborators.
func NewAPI(st store.Store, sched *scheduler.Scheduler, authSvc *auth.Service, idemStore *idempotency.Store) *API {
	api := &API{
		store:       st,
		sched:       sched,
		auth:        authSvc,
		idempotency: idemStore,
		// Allow 100 status polls/sec, burst 200
		previewLimiter: rate.NewLimiter(rate.Limit(100), 200),
		// Allow 10 submissions/sec, burst 20
		submitLimiter: rate.NewLimiter(rate.Limit(10), 20),
	}
	api.wsHub = NewMonitorHub(api)
	return api
}

func writeResult(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	json.NewEncoder(w).Encode(body)
}

func writeFail(w http.ResponseWriter, err error) {
	writeResult(w, retFail, err.Error(), nil)
}

// writeRateLimitError writes a 429 response with a jittered Retry-After.
func writeRateLimitError(w http.ResponseWriter, endpoint string) {
	observability.APIRateLimited.WithLabelValues(endpoint).Inc()
	retryAfter := 1000 + rand.Intn(1000)
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter/1000))
	http.Error(w, "Too Many Requests (Storm Protection Active)", http.StatusTooManyRequests)
}

// responseRecorder captures a handler's output for idempotent replay.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}

func (a *API) withIdempotency(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Idempotency-Key")
		if key == "" {
			next(w, r)
			return
		}

		if resp, found := a.idempotency.Get(r.Context(), key); found {
			for k, v := range resp.Headers {
				for _, val := range v {
					w.Header().Add(k, val)
				}
			}
			w.WriteHeader(resp.StatusCode)
			w.Write(resp.Body)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		a.idempotency.Set(r.Context(), key, idempotency.Response{
			StatusCode: rec.statusCode,
			Body:       rec.body,
			Headers:    rec.Header(),
		})
	}
}

// -- Auth --

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RePassword string `json:"re_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Username) < 6 {
		writeResult(w, retFail, "username must be at least 6 characters", nil)
		return
	}
	if len(req.Password) < 8 {
		writeResult(w, retFail, "password must be at least 8 characters", nil)
		return
	}
	if err := a.auth.Register(r.Context(), req.Username, req.Password, req.RePassword); err != nil {
		writeFail(w, err)
		return
	}
	writeResult(w, retSuccess, "success", nil)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	token, role, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeResult(w, retSuccess, "success", map[string]string{
		"token": token,
		"role":  string(role),
	})
}

// -- Driver endpoints --

func parseChargeMode(mode string) (store.PileKind, error) {
	switch mode {
	case "T":
		return store.KindSlow, nil
	case "F":
		return store.KindFast, nil
	default:
		return 0, errors.New("charge_mode must be 'T' or 'F'")
	}
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(value) {
		return decimal.Zero, fmt.Errorf("%s must be a decimal string with 2 fraction digits", field)
	}
	return decimal.NewFromString(value)
}

func (a *API) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.submitLimiter.Allow() {
		writeRateLimitError(w, "submit")
		return
	}
	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChargeMode    string `json:"charge_mode"`
		RequireAmount string `json:"require_amount"`
		BatterySize   string `json:"battery_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	kind, err := parseChargeMode(req.ChargeMode)
	if err != nil {
		writeFail(w, err)
		return
	}
	amount, err := parseAmount("require_amount", req.RequireAmount)
	if err != nil {
		writeFail(w, err)
		return
	}
	battery, err := parseAmount("battery_size", req.BatterySize)
	if err != nil {
		writeFail(w, err)
		return
	}

	if err := a.sched.SubmitRequest(r.Context(), kind, username, amount, battery); err != nil {
		writeFail(w, err)
		return
	}
	writeResult(w, retSuccess, "success", nil)
}

func (a *API) handleEditRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChargeMode    string `json:"charge_mode"`
		RequireAmount string `json:"require_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	kind, err := parseChargeMode(req.ChargeMode)
	if err != nil {
		writeFail(w, err)
		return
	}
	amount, err := parseAmount("require_amount", req.RequireAmount)
	if err != nil {
		writeFail(w, err)
		return
	}

	id, err := a.sched.GetRequestIDByUsername(username)
	if err != nil {
		writeFail(w, err)
		return
	}
	if err := a.sched.UpdateRequest(r.Context(), id, amount, kind); err != nil {
		writeFail(w, err)
		return
	}
	writeResult(w, retSuccess, "success", nil)
}

func (a *API) handleEndRequest(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := a.sched.GetRequestIDByUsername(username)
	if err != nil {
		writeFail(w, err)
		return
	}
	if err := a.sched.EndRequest(r.Context(), id); err != nil {
		writeFail(w, err)
		return
	}
	writeResult(w, retSuccess, "success", nil)
}

func (a *API) handlePreviewQueue(w http.ResponseWriter, r *http.Request) {
	if !a.previewLimiter.Allow() {
		writeRateLimitError(w, "preview_queue")
		return
	}
	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chargeID := ""
	place := "WAITINGPLACE"
	curState := scheduler.StatusNotCharging.String()
	position := -1

	if id, err := a.sched.GetRequestIDByUsername(username); err == nil {
		status, err := a.sched.GetRequestStatus(id)
		if err == nil {
			chargeID = strconv.Itoa(id)
			curState = status.Status.String()
			position = status.Position
			if status.PileID != 0 {
				place = strconv.Itoa(status.PileID)
			}
		}
	}

	writeResult(w, retSuccess, "success", map[string]interface{}{
		"charge_id": chargeID,
		"queue_len": position,
		"cur_state": curState,
		"place":     place,
	})
}

func (a *API) handleQueryOrders(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	orders, err := a.store.ListOrdersByUser(r.Context(), username)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeResult(w, retSuccess, "success", orders)
}
