package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-openapi/swag"

	"github.com/bnb-chain/blob-stats/service"
)

type AnalyticsHandler struct {
	svc service.Analytics
}

func NewAnalyticsHandler(svc service.Analytics) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// uintParam reads an optional unsigned query parameter, 0 when absent.
func uintParam(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := swag.ConvertUint64(raw)
	if err != nil {
		return 0, service.BadRequestWithError(fmt.Errorf("invalid %s %q", name, raw))
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := uintParam(r, name)
	if err != nil {
		return 0, err
	}
	if v > service.MaxRecentLimit {
		v = service.MaxRecentLimit
	}
	return int(v), nil
}

func (h *AnalyticsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats()
	WriteResponse(w, r, stats, err)
}

func (h *AnalyticsHandler) HandleGetRecentBlocks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	blocks, err := h.svc.GetRecentBlocks(limit)
	WriteResponse(w, r, blocks, err)
}

func (h *AnalyticsHandler) HandleGetBlock(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("block_number") == "" {
		WriteResponse(w, r, nil, service.BadRequestErr.Enrich("block_number is required"))
		return
	}
	number, err := uintParam(r, "block_number")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	block, err := h.svc.GetBlock(number)
	WriteResponse(w, r, block, err)
}

func (h *AnalyticsHandler) HandleGetTopSenders(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	senders, err := h.svc.GetTopSenders(limit)
	WriteResponse(w, r, senders, err)
}

func (h *AnalyticsHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	blocks, err := uintParam(r, "blocks")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	chart, err := h.svc.GetChart(blocks)
	WriteResponse(w, r, chart, err)
}

func (h *AnalyticsHandler) HandleGetAllTimeChart(w http.ResponseWriter, r *http.Request) {
	points, err := uintParam(r, "points")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	upgrade, err := uintParam(r, "upgrade_timestamp")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	chart, err := h.svc.GetAllTimeChart(points, upgrade)
	WriteResponse(w, r, chart, err)
}

func (h *AnalyticsHandler) HandleGetBlobTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	txs, err := h.svc.GetRecentBlobTransactions(limit)
	WriteResponse(w, r, txs, err)
}

func (h *AnalyticsHandler) HandleGetRollingComparison(w http.ResponseWriter, r *http.Request) {
	rc, err := h.svc.GetRollingComparison()
	WriteResponse(w, r, rc, err)
}

func (h *AnalyticsHandler) HandleGetChainProfiles(w http.ResponseWriter, r *http.Request) {
	hours, err := uintParam(r, "hours")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	profiles, err := h.svc.GetChainProfiles(hours)
	WriteResponse(w, r, profiles, err)
}

func (h *AnalyticsHandler) HandleGetCongestionHeatmap(w http.ResponseWriter, r *http.Request) {
	days, err := uintParam(r, "days")
	if err != nil {
		WriteResponse(w, r, nil, err)
		return
	}
	heatmap, err := h.svc.GetCongestionHeatmap(days)
	WriteResponse(w, r, heatmap, err)
}

func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, r, map[string]string{"status": "ok"}, nil)
}
