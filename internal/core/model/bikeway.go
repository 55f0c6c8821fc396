package model

import "strings"

// BikewaySchema names the property layout of one municipality's cycling
// network layer.
type BikewaySchema string

const (
	// BikewayRegional carries name/type/municipality (Toronto, York and the
	// Halton towns).
	BikewayRegional BikewaySchema = "regional"
	// BikewayPeel carries Name/Class/MUN; the line category comes from Type.
	BikewayPeel BikewaySchema = "peel"
	// BikewayNamed carries a name only (Durham).
	BikewayNamed BikewaySchema = "named"
	// BikewayFacility carries location/type (Ajax).
	BikewayFacility BikewaySchema = "facility"
	// BikewaySegment carries roadname/start/end/type (Whitby).
	BikewaySegment BikewaySchema = "segment"
)

func (s BikewaySchema) Valid() bool {
	switch s {
	case BikewayRegional, BikewayPeel, BikewayNamed, BikewayFacility, BikewaySegment:
		return true
	}
	return false
}

// BikewayCategory groups the free-text facility types into the classes the
// map styles by.
type BikewayCategory string

const (
	CategoryBikeLane      BikewayCategory = "bike_lane"
	CategoryCycleTrack    BikewayCategory = "cycle_track"
	CategoryMultiUse      BikewayCategory = "multi_use"
	CategorySharrows      BikewayCategory = "sharrows"
	CategorySharedRoadway BikewayCategory = "shared_roadway"
	CategoryTrail         BikewayCategory = "trail"
	CategorySharedPathway BikewayCategory = "shared_pathway"
	CategoryPavedShoulder BikewayCategory = "paved_shoulder"
	CategoryOther         BikewayCategory = "other"
)

// Burlington publishes short codes instead of descriptions.
var bikewayCodes = map[string]BikewayCategory{
	"bl":        CategoryBikeLane,
	"mupoff":    CategoryMultiUse,
	"mupadj":    CategoryMultiUse,
	"shared":    CategorySharrows,
	"bl-shared": CategorySharedPathway,
	"ps":        CategoryPavedShoulder,
}

var bikewayPhrases = []struct {
	phrases  []string
	category BikewayCategory
}{
	{[]string{"bike lane"}, CategoryBikeLane},
	{[]string{"cycle track"}, CategoryCycleTrack},
	{[]string{"multi"}, CategoryMultiUse},
	{[]string{"sharrows"}, CategorySharrows},
	{[]string{"shared roadway", "signed route"}, CategorySharedRoadway},
	{[]string{"hiking", "park road"}, CategoryTrail},
	{[]string{"shared pathway"}, CategorySharedPathway},
	{[]string{"paved shoulder"}, CategoryPavedShoulder},
}

// ClassifyBikeway maps a facility type to its category, case-insensitively.
// The first matching phrase wins.
func ClassifyBikeway(facility string) BikewayCategory {
	t := strings.ToLower(strings.TrimSpace(facility))
	if t == "" {
		return CategoryOther
	}
	if c, ok := bikewayCodes[t]; ok {
		return c
	}
	for _, p := range bikewayPhrases {
		for _, ph := range p.phrases {
			if strings.Contains(t, ph) {
				return p.category
			}
		}
	}
	return CategoryOther
}

type BikewayDetails struct {
	Schema       BikewaySchema   `json:"schema"`
	Municipality string          `json:"municipality"`
	Name         string          `json:"name,omitempty"`
	Type         string          `json:"type,omitempty"`
	City         string          `json:"city,omitempty"`
	Location     string          `json:"location,omitempty"`
	Start        string          `json:"start,omitempty"`
	End          string          `json:"end,omitempty"`
	Category     BikewayCategory `json:"category"`
}

func (d BikewayDetails) Kind() Kind { return KindBikeway }

func (d BikewayDetails) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Location != "" {
		return d.Location
	}
	return "Bikeway"
}

func (d BikewayDetails) PopupLines() []PopupLine {
	switch d.Schema {
	case BikewayNamed:
		return []PopupLine{{Label: "Name", Value: orNA(d.Name)}}
	case BikewayFacility:
		return []PopupLine{
			{Label: "Location", Value: orNA(d.Location)},
			{Label: "Facility", Value: orNA(d.Type)},
		}
	case BikewaySegment:
		return []PopupLine{
			{Label: "Location", Value: orNA(d.Location)},
			{Label: "Start", Value: orNA(d.Start)},
			{Label: "End", Value: orNA(d.End)},
			{Label: "Type", Value: orNA(d.Type)},
		}
	}
	return []PopupLine{
		{Label: "Name", Value: orNA(d.Name)},
		{Label: "Trail type", Value: orNA(d.Type)},
		{Label: "City", Value: orNA(d.City)},
	}
}
