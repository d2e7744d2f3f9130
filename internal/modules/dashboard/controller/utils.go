package controller

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"riverdash/internal/config"
	"riverdash/internal/modules/dashboard/types"
	"riverdash/internal/state"
	"riverdash/internal/utils"
)

const (
	riversPageSize      = 5
	defaultHistoryHours = 24
	maxHistoryHours     = 30 * 24
)

var errUnknownRegion = errors.New("unknown region")

func (c *dashboardControllerImpl) regions() []string {
	out := []string{config.AllRegions}
	for _, r := range c.sites.Regions {
		out = append(out, r.Name)
	}
	return out
}

func (c *dashboardControllerImpl) riverRow(r config.River, snap state.Snapshot) types.RiverRow {
	row := types.RiverRow{
		Name:           r.Name,
		SiteID:         r.SiteID,
		Region:         c.sites.RegionOf(r.Name),
		HasTemperature: r.HasTemperature,
		Pinned:         snap.PinnedRiver == r.SiteID,
	}
	if reading, ok := snap.Rivers[r.SiteID]; ok {
		row.Reading = &reading
		row.FlowChange = reading.FlowChange()
		row.TempChange = reading.TempChange()
	}
	return row
}

// riversPage filters by region, moves the pinned river to the front and
// slices out page. page is clamped to the available pages.
func (c *dashboardControllerImpl) riversPage(snap state.Snapshot, region string, page int) (types.RiversPage, error) {
	if region == "" {
		region = config.AllRegions
	}
	regions := c.regions()
	if !slices.Contains(regions, region) {
		return types.RiversPage{}, fmt.Errorf("%w %q", errUnknownRegion, region)
	}

	rivers := slices.Clone(c.sites.RiversInRegion(region))
	if i := slices.IndexFunc(rivers, func(r config.River) bool { return r.SiteID == snap.PinnedRiver }); i > 0 {
		pinned := rivers[i]
		rivers = slices.Delete(rivers, i, i+1)
		rivers = slices.Insert(rivers, 0, pinned)
	}

	totalPages := max(1, (len(rivers)+riversPageSize-1)/riversPageSize)
	page = min(max(page, 1), totalPages)
	start := (page - 1) * riversPageSize
	end := min(start+riversPageSize, len(rivers))

	rows := make([]types.RiverRow, 0, end-start)
	for _, r := range rivers[start:end] {
		rows = append(rows, c.riverRow(r, snap))
	}
	return types.RiversPage{
		Region:     region,
		Regions:    regions,
		Page:       page,
		PageSize:   riversPageSize,
		TotalPages: totalPages,
		Total:      len(rivers),
		Rivers:     rows,
	}, nil
}

func parseRiversQuery(r *http.Request) (region string, page int, err error) {
	page, err = utils.QueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(r.URL.Query().Get("region")), page, nil
}

// isFormPost reports whether r came from an HTML form on the dashboard page,
// which expects a redirect rather than JSON.
func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if isFormPost(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	utils.WriteJSON(w, status, v)
}
