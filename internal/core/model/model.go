// Package model defines core domain types shared across the service.
package model

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Kind is the provenance tag of a result entry.
type Kind string

const (
	KindShop    Kind = "shop"
	KindParking Kind = "parking"
	KindShare   Kind = "share"
	KindBikeway Kind = "bikeway"
)

func (k Kind) Valid() bool {
	switch k {
	case KindShop, KindParking, KindShare, KindBikeway:
		return true
	}
	return false
}

const NotAvailable = "Not Available"

type PopupLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Details is the normalized, per-source view of a feature's property bag.
type Details interface {
	Kind() Kind
	Label() string
	PopupLines() []PopupLine
}

type ResultEntry struct {
	Kind    Kind           `json:"kind"`
	Source  string         `json:"source"`
	Coord   orb.Point      `json:"coord"`
	Label   string         `json:"label"`
	Details Details        `json:"details"`
	Props   map[string]any `json:"properties,omitempty"`
}

type ShopDetails struct {
	Name       string `json:"name"`
	Rental     string `json:"rental,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (d ShopDetails) Kind() Kind    { return KindShop }
func (d ShopDetails) Label() string { return d.Name }

func (d ShopDetails) PopupLines() []PopupLine {
	return []PopupLine{
		{Label: "Name", Value: orNA(d.Name)},
		{Label: "Rental", Value: orNA(d.Rental)},
		{Label: "Address", Value: orNA(d.Address)},
		{Label: "Postal Code", Value: orNA(d.PostalCode)},
		{Label: "City", Value: orNA(d.City)},
		{Label: "Phone", Value: orNA(d.Phone)},
	}
}

type ParkingSchema string

const (
	// ParkingToronto carries name/address/parking_type/bike_capacity.
	ParkingToronto ParkingSchema = "toronto"
	// ParkingMunicipal carries location/type only.
	ParkingMunicipal ParkingSchema = "municipal"
)

type ParkingDetails struct {
	Schema      ParkingSchema `json:"schema"`
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Address     string        `json:"address,omitempty"`
	PostalCode  string        `json:"postal_code,omitempty"`
	City        string        `json:"city,omitempty"`
	ParkingType string        `json:"parking_type,omitempty"`
	Capacity    *int          `json:"capacity"`
	Location    string        `json:"location,omitempty"`
	Facility    string        `json:"facility,omitempty"`
}

func (d ParkingDetails) Kind() Kind    { return KindParking }
func (d ParkingDetails) Label() string { return d.Name }

func (d ParkingDetails) PopupLines() []PopupLine {
	if d.Schema == ParkingMunicipal {
		return []PopupLine{
			{Label: "Location", Value: orNA(d.Location)},
			{Label: "Facility", Value: orNA(d.Facility)},
			{Label: "Bike Capacity", Value: intOrNA(d.Capacity)},
		}
	}
	return []PopupLine{
		{Label: "Name", Value: orNA(d.Name)},
		{Label: "Address", Value: orNA(d.Address)},
		{Label: "Postal Code", Value: orNA(d.PostalCode)},
		{Label: "City", Value: orNA(d.City)},
		{Label: "Parking type", Value: orNA(d.ParkingType)},
		{Label: "Bike Capacity", Value: intOrNA(d.Capacity)},
	}
}

type StationDetails struct {
	StationID      string `json:"station_id"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Capacity       *int   `json:"capacity"`
	BikesAvailable *int   `json:"bikes_available,omitempty"`
	DocksAvailable *int   `json:"docks_available,omitempty"`
}

func (d StationDetails) Kind() Kind    { return KindShare }
func (d StationDetails) Label() string { return d.Name }

func (d StationDetails) PopupLines() []PopupLine {
	lines := []PopupLine{
		{Label: "Name", Value: orNA(d.Name)},
		{Label: "Station ID", Value: orNA(d.StationID)},
		{Label: "Capacity", Value: intOrNA(d.Capacity)},
	}
	if d.BikesAvailable != nil {
		lines = append(lines, PopupLine{Label: "Bikes Available", Value: strconv.Itoa(*d.BikesAvailable)})
	}
	if d.DocksAvailable != nil {
		lines = append(lines, PopupLine{Label: "Docks Available", Value: strconv.Itoa(*d.DocksAvailable)})
	}
	return lines
}

type WeatherReading struct {
	Variable string   `json:"variable"`
	Label    string   `json:"label"`
	Unit     string   `json:"unit"`
	Value    *float64 `json:"value"`
	Error    string   `json:"error,omitempty"`
}

type View struct {
	Center  orb.Point `json:"center"`
	Zoom    float64   `json:"zoom"`
	Bearing float64   `json:"bearing"`
}

type Popup struct {
	Coord orb.Point   `json:"coord"`
	Kind  Kind        `json:"kind"`
	Title string      `json:"title"`
	Lines []PopupLine `json:"lines"`
}

type StageError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func intOrNA(n *int) string {
	if n == nil {
		return NotAvailable
	}
	return strconv.Itoa(*n)
}
