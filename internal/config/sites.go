package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var defaultSitesYAML []byte

// AllRegions selects every river regardless of region.
const AllRegions = "All"

type River struct {
	Name           string `yaml:"name" validate:"required"`
	SiteID         string `yaml:"site_id" validate:"required,numeric,min=8,max=15"`
	HasTemperature bool   `yaml:"has_temperature"`
}

type Town struct {
	Name  string  `yaml:"name" validate:"required"`
	State string  `yaml:"state" validate:"required,len=2,alpha"`
	Lat   float64 `yaml:"lat" validate:"latitude"`
	Lon   float64 `yaml:"lon" validate:"longitude"`
}

// Label is the display name used as the weather key, e.g. "Polson, MT".
func (t Town) Label() string {
	return t.Name + ", " + t.State
}

type Region struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

type Sites struct {
	Regions       []Region `yaml:"regions" validate:"dive"`
	DefaultRegion string   `yaml:"default_region" validate:"required"`
	Rivers        []River  `yaml:"rivers" validate:"required,min=1,dive"`
	Towns         []Town   `yaml:"towns" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadSites returns the embedded site list, or the YAML file at path when set.
func LoadSites(path string) (Sites, error) {
	data := defaultSitesYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Sites{}, fmt.Errorf("read sites file: %w", err)
		}
		data = b
	}
	return parseSites(data)
}

func parseSites(data []byte) (Sites, error) {
	var s Sites
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sites{}, fmt.Errorf("parse sites: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return Sites{}, fmt.Errorf("validate sites: %w", err)
	}
	seen := make(map[string]bool, len(s.Rivers))
	for _, r := range s.Rivers {
		if seen[r.SiteID] {
			return Sites{}, fmt.Errorf("validate sites: duplicate site_id %q", r.SiteID)
		}
		seen[r.SiteID] = true
	}
	return s, nil
}

// SiteIDs returns the river site ids in configured order.
func (s Sites) SiteIDs() []string {
	out := make([]string, 0, len(s.Rivers))
	for _, r := range s.Rivers {
		out = append(out, r.SiteID)
	}
	return out
}

// River looks up a river by site id.
func (s Sites) River(siteID string) (River, bool) {
	for _, r := range s.Rivers {
		if r.SiteID == siteID {
			return r, true
		}
	}
	return River{}, false
}

// Town looks up a town by its label.
func (s Sites) Town(label string) (Town, bool) {
	for _, t := range s.Towns {
		if t.Label() == label {
			return t, true
		}
	}
	return Town{}, false
}

// RegionOf returns the first region whose keyword occurs in the river name,
// falling back to DefaultRegion.
func (s Sites) RegionOf(riverName string) string {
	name := strings.ToLower(riverName)
	for _, reg := range s.Regions {
		for _, kw := range reg.Keywords {
			if strings.Contains(name, strings.ToLower(kw)) {
				return reg.Name
			}
		}
	}
	return s.DefaultRegion
}

// RiversInRegion filters rivers by region; AllRegions or "" returns every river.
func (s Sites) RiversInRegion(region string) []River {
	if region == "" || region == AllRegions {
		return s.Rivers
	}
	var out []River
	for _, r := range s.Rivers {
		if s.RegionOf(r.Name) == region {
			out = append(out, r)
		}
	}
	return out
}
