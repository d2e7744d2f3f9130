package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"riverdash/internal/config"
	"riverdash/internal/modules/dashboard/types"
	"riverdash/internal/utils"
)

func intervalsView(iv config.Intervals) types.Intervals {
	return types.Intervals{
		APIPollSeconds:    int64(iv.APIPoll / time.Second),
		SensorReadSeconds: int64(iv.SensorRead / time.Second),
		SensorLogSeconds:  int64(iv.SensorLog / time.Second),
	}
}

func (c *dashboardControllerImpl) handleGetIntervals(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, intervalsView(c.intervals.Intervals()))
}

// handlePutIntervals applies the changed periods and stores them so they
// survive a restart.
func (c *dashboardControllerImpl) handlePutIntervals(w http.ResponseWriter, r *http.Request) {
	var body types.Intervals
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.APIPollSeconds < 0 || body.SensorReadSeconds < 0 || body.SensorLogSeconds < 0 {
		utils.WriteError(w, http.StatusBadRequest, "intervals must not be negative")
		return
	}
	override := config.Intervals{
		APIPoll:    time.Duration(body.APIPollSeconds) * time.Second,
		SensorRead: time.Duration(body.SensorReadSeconds) * time.Second,
		SensorLog:  time.Duration(body.SensorLogSeconds) * time.Second,
	}
	iv := c.intervals.Intervals().Merge(override)
	if err := iv.Validate(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.settings.SetIntervals(r.Context(), iv); err != nil {
		c.logger.Error("save intervals failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to save intervals")
		return
	}
	if err := c.intervals.SetIntervals(iv); err != nil {
		c.logger.Error("apply intervals failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to apply intervals")
		return
	}
	respond(w, r, http.StatusOK, intervalsView(iv))
}

func (c *dashboardControllerImpl) handleResetIntervals(w http.ResponseWriter, r *http.Request) {
	if err := c.settings.ClearIntervals(r.Context()); err != nil {
		c.logger.Error("clear intervals failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to reset intervals")
		return
	}
	if err := c.intervals.SetIntervals(c.defaults); err != nil {
		c.logger.Error("apply default intervals failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to apply intervals")
		return
	}
	respond(w, r, http.StatusOK, intervalsView(c.defaults))
}
