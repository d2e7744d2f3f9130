package controller

import (
	"bytes"
	"errors"
	"net/http"

	"riverdash/internal/modules/dashboard/types"
	"riverdash/internal/modules/dashboard/views"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/utils"
)

func (c *dashboardControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	region, page, err := parseRiversQuery(r)
	if err != nil {
		page = 1
	}
	snap := c.store.Snapshot()
	rivers, err := c.riversPage(snap, region, page)
	if err != nil {
		rivers, _ = c.riversPage(snap, "", 1)
	}

	data := &types.Dashboard{
		Alert:        snap.Alert,
		Rivers:       rivers,
		Forecasts:    c.orderedForecasts(snap.Forecasts),
		LastAPIFetch: snap.LastAPIFetch,
		Refreshing:   snap.Refreshing,
	}
	if snap.Sensor != nil {
		data.Indoor = &types.Indoor{Reading: *snap.Sensor, AirQuality: *snap.AirQuality, Live: true}
	}
	if rv, ok := c.sites.River(snap.PinnedRiver); ok {
		row := c.riverRow(rv, snap)
		data.Pinned = &row
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		c.logger.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Error("dashboard: write response failed", "error", err)
	}
}

func (c *dashboardControllerImpl) handleRiversPartial(w http.ResponseWriter, r *http.Request) {
	region, page, err := parseRiversQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rivers, err := c.riversPage(c.store.Snapshot(), region, page)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := views.RenderRiversPartial(&buf, &rivers); err != nil {
		c.logger.Error("rivers partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Error("rivers partial: write response failed", "error", err)
	}
}

func (c *dashboardControllerImpl) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.store.Snapshot())
}

func (c *dashboardControllerImpl) handleRivers(w http.ResponseWriter, r *http.Request) {
	region, page, err := parseRiversQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rivers, err := c.riversPage(c.store.Snapshot(), region, page)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, rivers)
}

func (c *dashboardControllerImpl) handleRiver(w http.ResponseWriter, r *http.Request) {
	rv, ok := c.sites.River(r.PathValue("id"))
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "unknown site id")
		return
	}
	utils.WriteJSON(w, http.StatusOK, c.riverRow(rv, c.store.Snapshot()))
}

func (c *dashboardControllerImpl) handlePin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := c.sites.River(id); !ok {
		utils.WriteError(w, http.StatusNotFound, "unknown site id")
		return
	}
	if err := c.settings.SetPinnedRiver(r.Context(), id); err != nil {
		c.logger.Error("pin river failed", "site_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to pin river")
		return
	}
	c.store.SetPinnedRiver(id)
	c.logger.Info("river pinned", "site_id", id)
	respond(w, r, http.StatusOK, map[string]string{"pinned_river": id})
}

func (c *dashboardControllerImpl) handleUnpin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := c.sites.River(id); !ok {
		utils.WriteError(w, http.StatusNotFound, "unknown site id")
		return
	}
	pinned := c.store.Snapshot().PinnedRiver
	if pinned == id {
		if err := c.settings.ClearPinnedRiver(r.Context()); err != nil {
			c.logger.Error("unpin river failed", "site_id", id, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to unpin river")
			return
		}
		c.store.SetPinnedRiver("")
		pinned = ""
		c.logger.Info("river unpinned", "site_id", id)
	}
	respond(w, r, http.StatusOK, map[string]string{"pinned_river": pinned})
}

func (c *dashboardControllerImpl) orderedForecasts(byLabel map[string]forecast.Bundle) []forecast.Bundle {
	out := make([]forecast.Bundle, 0, len(byLabel))
	for _, t := range c.sites.Towns {
		if b, ok := byLabel[t.Label()]; ok {
			out = append(out, b)
		}
	}
	return out
}

func (c *dashboardControllerImpl) handleWeather(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.orderedForecasts(c.store.Snapshot().Forecasts))
}

func (c *dashboardControllerImpl) handleWeatherLocation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := c.sites.Town(name); !ok {
		utils.WriteError(w, http.StatusNotFound, "unknown location")
		return
	}
	b, ok := c.store.Snapshot().Forecasts[name]
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "no forecast available")
		return
	}
	utils.WriteJSON(w, http.StatusOK, b)
}

func (c *dashboardControllerImpl) handleIndoorLatest(w http.ResponseWriter, r *http.Request) {
	snap := c.store.Snapshot()
	if snap.Sensor != nil {
		utils.WriteJSON(w, http.StatusOK, types.Indoor{Reading: *snap.Sensor, AirQuality: *snap.AirQuality, Live: true})
		return
	}
	rd, err := c.readings.GetLatestReading(r.Context())
	if errors.Is(err, indoor.ErrNoReadings) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		c.logger.Error("get latest reading failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load reading")
		return
	}
	utils.WriteJSON(w, http.StatusOK, types.Indoor{Reading: rd, AirQuality: indoor.AirQuality(rd.PM25)})
}

func (c *dashboardControllerImpl) handleIndoorReadings(w http.ResponseWriter, r *http.Request) {
	hours, err := utils.QueryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.readings.GetReadingsForHours(r.Context(), hours)
	if err != nil {
		c.logger.Error("get readings failed", "hours", hours, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	if readings == nil {
		readings = []indoor.Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"hours": hours, "readings": readings})
}

func (c *dashboardControllerImpl) handleIndoorSeries(w http.ResponseWriter, r *http.Request) {
	metricParam := r.URL.Query().Get("metric")
	if metricParam == "" {
		metricParam = string(indoor.MetricTemperature)
	}
	metric, err := indoor.ParseMetric(metricParam)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := utils.QueryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.readings.GetReadingsForHours(r.Context(), hours)
	if err != nil {
		c.logger.Error("get readings failed", "hours", hours, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	utils.WriteJSON(w, http.StatusOK, types.Series{
		Metric: metric,
		Label:  metric.Label(),
		Unit:   metric.Unit(),
		Hours:  hours,
		Points: indoor.Series(readings, metric),
	})
}

func (c *dashboardControllerImpl) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := c.refresher.RefreshNow()
	respond(w, r, http.StatusAccepted, map[string]any{"status": "refreshing", "started": started})
}

func (c *dashboardControllerImpl) handleAlert(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.store.Snapshot().Alert)
}

func (c *dashboardControllerImpl) handleAlertDismiss(w http.ResponseWriter, r *http.Request) {
	st := c.store.DismissAlert(c.alert, c.now())
	c.logger.Info("air quality alert dismissed", "until", st.DismissedUntil)
	respond(w, r, http.StatusOK, st)
}
