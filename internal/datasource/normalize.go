package datasource

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
)

// props is a GeoJSON property bag with lenient accessors; the municipal
// datasets mix strings, numbers and nulls for the same field.
type props map[string]any

func (p props) str(keys ...string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprint(t)
		}
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}

func (p props) intPtr(keys ...string) *int {
	for _, k := range keys {
		switch t := p[k].(type) {
		case float64:
			if math.IsNaN(t) || math.IsInf(t, 0) {
				continue
			}
			n := int(t)
			return &n
		case int:
			n := t
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return &n
			}
		}
	}
	return nil
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "<null>", "n/a", "na", "-":
		return true
	}
	return false
}

var idKeys = []string{"id", "_id", "ID", "OBJECTID", "objectid", "FID", "fid", "ADDRESS_POINT_ID"}

func identifier(p props, featureID any, ordinal int) string {
	if s := p.str(idKeys...); s != "" {
		return s
	}
	if featureID != nil {
		if s := strings.TrimSpace(fmt.Sprint(featureID)); s != "" && s != "<nil>" {
			return s
		}
	}
	return strconv.Itoa(ordinal + 1)
}

func normalizeShop(p props, featureID any, ordinal int) model.ShopDetails {
	name := p.str("name", "NAME", "shop_name")
	if isPlaceholder(name) {
		name = "Bike Shop " + identifier(p, featureID, ordinal)
	}
	return model.ShopDetails{
		Name:       name,
		Rental:     p.str("rental", "RENTAL"),
		Address:    p.str("address", "ADDRESS"),
		PostalCode: p.str("postal_code", "POSTAL_CODE"),
		City:       p.str("city", "CITY"),
		Phone:      p.str("phone", "PHONE"),
	}
}

// parkingSchema picks the property schema for a parking feature. Toronto's
// open data exposes name/address/parking_type/bike_capacity. Other
// municipalities publish no common parking layout, so their features are
// read as a generic location/facility pair.
func parkingSchema(municipality string, p props) model.ParkingSchema {
	if strings.EqualFold(municipality, "toronto") {
		return model.ParkingToronto
	}
	for _, k := range []string{"parking_type", "bike_capacity", "address", "postal_code"} {
		if _, ok := p[k]; ok {
			return model.ParkingToronto
		}
	}
	return model.ParkingMunicipal
}

func normalizeParking(municipality string, p props, featureID any, ordinal int) model.ParkingDetails {
	id := identifier(p, featureID, ordinal)
	d := model.ParkingDetails{
		Schema:   parkingSchema(municipality, p),
		ID:       id,
		Capacity: p.intPtr("bike_capacity", "capacity", "CAPACITY"),
	}
	switch d.Schema {
	case model.ParkingToronto:
		d.Name = p.str("name", "NAME")
		d.Address = p.str("address", "ADDRESS")
		d.PostalCode = p.str("postal_code", "POSTAL_CODE")
		d.City = p.str("city", "CITY")
		d.ParkingType = p.str("parking_type", "PARKING_TYPE")
	default:
		d.Location = p.str("location", "LOCATION", "roadname")
		d.Facility = p.str("type", "TYPE", "facility")
		d.Name = d.Location
	}
	if isPlaceholder(d.Name) {
		d.Name = "Bike Parking " + id
	}
	return d
}

func normalizeBikeway(layer BikewayLayer, p props) model.BikewayDetails {
	d := model.BikewayDetails{Schema: layer.Schema, Municipality: layer.Municipality}
	styleType := ""
	switch layer.Schema {
	case model.BikewayPeel:
		d.Name = p.str("Name", "name")
		d.Type = p.str("Class", "class")
		d.City = p.str("MUN", "mun")
		styleType = p.str("Type", "type")
	case model.BikewayNamed:
		d.Name = p.str("name", "NAME")
		styleType = p.str("type", "TYPE")
	case model.BikewayFacility:
		d.Location = p.str("location", "LOCATION")
		d.Type = p.str("type", "TYPE")
	case model.BikewaySegment:
		d.Location = p.str("roadname", "ROADNAME")
		d.Start = p.str("start", "START")
		d.End = p.str("end", "END")
		d.Type = p.str("type", "TYPE")
	default:
		d.Name = p.str("name", "NAME")
		d.Type = p.str("type", "TYPE")
		d.City = p.str("municipality", "MUNICIPALITY")
	}
	for _, f := range []*string{&d.Name, &d.Type, &d.City, &d.Location, &d.Start, &d.End} {
		if isPlaceholder(*f) {
			*f = ""
		}
	}
	if styleType == "" {
		styleType = d.Type
	}
	d.Category = model.ClassifyBikeway(styleType)
	return d
}
