package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/liuqk23/PileFlow/control_plane/scheduler"
	"github.com/liuqk23/PileFlow/control_plane/store"
)

// -- Operator endpoints (role ADMIN) --

func (a *API) handleQueryAllPilesStat(w http.ResponseWriter, r *http.Request) {
	piles, err := a.store.ListPiles(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	type pileStat struct {
		PileID                    string `json:"pile_id"`
		Status                    string `json:"status"`
		Kind                      string `json:"kind"`
		CumulativeUsageTimes      int    `json:"cumulative_usage_times"`
		CumulativeChargingSeconds int64  `json:"cumulative_charging_time"`
		CumulativeChargingAmount  string `json:"cumulative_charging_amount"`
	}
	stats := make([]pileStat, 0, len(piles))
	for _, p := range piles {
		stats = append(stats, pileStat{
			PileID:                    strconv.Itoa(p.PileID),
			Status:                    p.Status.String(),
			Kind:                      p.Kind.String(),
			CumulativeUsageTimes:      p.CumulativeUsageTimes,
			CumulativeChargingSeconds: p.CumulativeChargingSeconds,
			CumulativeChargingAmount:  p.CumulativeChargingAmount.StringFixed(2),
		})
	}
	writeResult(w, retSuccess, "success", stats)
}

// handleUpdatePile flips a pile's operator status. Going to RUNNING recovers
// the pile; SHUTDOWN or UNAVAILABLE brakes it.
func (a *API) handleUpdatePile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PileID int    `json:"pile_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, ok := store.ParsePileStatus(req.Status)
	if !ok {
		writeResult(w, retFail, "status must be RUNNING, SHUTDOWN or UNAVAILABLE", nil)
		return
	}

	var err error
	if status == store.StatusRunning {
		err = a.sched.Recover(r.Context(), req.PileID)
	} else {
		err = a.sched.Brake(r.Context(), req.PileID)
	}
	if err != nil {
		if errors.Is(err, scheduler.ErrPileNotFound) {
			writeFail(w, err)
			return
		}
		log.Printf("Failed to update pile %d: %v", req.PileID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := a.store.UpdatePileStatus(r.Context(), req.PileID, status); err != nil {
		log.Printf("Failed to persist status of pile %d: %v", req.PileID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeResult(w, retSuccess, "success", nil)
}

func (a *API) handleQueryReport(w http.ResponseWriter, r *http.Request) {
	reports, err := a.store.PileReport(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	type reportRow struct {
		PileID                    string `json:"pile_id"`
		CumulativeUsageTimes      int    `json:"cumulative_usage_times"`
		CumulativeChargingSeconds int64  `json:"cumulative_charging_time"`
		CumulativeChargingAmount  string `json:"cumulative_charging_amount"`
		CumulativeChargingEarning string `json:"cumulative_charging_earning"`
		CumulativeServiceEarning  string `json:"cumulative_service_earning"`
		CumulativeEarning         string `json:"cumulative_earning"`
	}
	rows := make([]reportRow, 0, len(reports))
	for _, rep := range reports {
		rows = append(rows, reportRow{
			PileID:                    strconv.Itoa(rep.PileID),
			CumulativeUsageTimes:      rep.CumulativeUsageTimes,
			CumulativeChargingSeconds: rep.CumulativeChargingSeconds,
			CumulativeChargingAmount:  rep.CumulativeChargingAmount.StringFixed(2),
			CumulativeChargingEarning: rep.CumulativeChargingEarning.StringFixed(2),
			CumulativeServiceEarning:  rep.CumulativeServiceEarning.StringFixed(2),
			CumulativeEarning:         rep.CumulativeEarning.StringFixed(2),
		})
	}
	writeResult(w, retSuccess, "success", rows)
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeResult(w, retSuccess, "success", a.sched.Snapshot())
}

// handleTimeline returns the charge-event trail, optionally filtered by
// request_id or username.
func (a *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tl := a.sched.GetTimeline()
	if idStr := r.URL.Query().Get("request_id"); idStr != "" {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			writeResult(w, retFail, "request_id must be an integer", nil)
			return
		}
		writeResult(w, retSuccess, "success", tl.GetEvents(id))
		return
	}
	if username := r.URL.Query().Get("username"); username != "" {
		writeResult(w, retSuccess, "success", tl.GetEventsByUser(username))
		return
	}
	writeResult(w, retSuccess, "success", tl.GetAllEvents())
}
