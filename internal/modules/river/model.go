package river

// StationReading is the parsed state of one USGS station. Nil fields mean the
// upstream series had no points for that variable; a real 0.0 is kept.
type StationReading struct {
	SiteID     string   `json:"site_id"`
	FlowCFS    *float64 `json:"flow_cfs"`
	Flow24hAgo *float64 `json:"flow_24h_ago"`
	TempF      *float64 `json:"temp_f"`
	Temp24hAgo *float64 `json:"temp_24h_ago"`
	Timestamp  string   `json:"timestamp"`
	Error      *string  `json:"error"`
	Cached     bool     `json:"cached"`
}

// MarkCached flags the reading as served from the local cache.
func (r *StationReading) MarkCached() { r.Cached = true }

// FlowChange is current minus 24h-ago flow, or nil if either side is missing.
func (r StationReading) FlowChange() *float64 {
	return delta(r.FlowCFS, r.Flow24hAgo)
}

// TempChange is current minus 24h-ago temperature in °F.
func (r StationReading) TempChange() *float64 {
	return delta(r.TempF, r.Temp24hAgo)
}

func delta(now, then *float64) *float64 {
	if now == nil || then == nil {
		return nil
	}
	d := round1(*now - *then)
	return &d
}

// usgsResponse is the subset of the NWIS instantaneous-values JSON we read.
type usgsResponse struct {
	Value struct {
		TimeSeries []usgsSeries `json:"timeSeries"`
	} `json:"value"`
}

type usgsSeries struct {
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
	} `json:"variable"`
	Values []struct {
		Value []usgsPoint `json:"value"`
	} `json:"values"`
}

type usgsPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}
