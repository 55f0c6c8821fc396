package model

import "testing"

func TestParkingPopup_CapacityNotAvailable(t *testing.T) {
	d := ParkingDetails{Schema: ParkingToronto, Name: "Ring and post"}
	lines := d.PopupLines()
	last := lines[len(lines)-1]
	if last.Label != "Bike Capacity" || last.Value != NotAvailable {
		t.Fatalf("expected capacity Not Available, got %+v", last)
	}

	n := 12
	d.Capacity = &n
	lines = d.PopupLines()
	if got := lines[len(lines)-1].Value; got != "12" {
		t.Fatalf("capacity=%q want 12", got)
	}
}

func TestParkingPopup_MunicipalSchema(t *testing.T) {
	d := ParkingDetails{Schema: ParkingMunicipal, Location: "Main St", Facility: "Bike rack"}
	lines := d.PopupLines()
	if len(lines) != 3 {
		t.Fatalf("municipal popup lines=%d want 3", len(lines))
	}
	if lines[0].Label != "Location" || lines[0].Value != "Main St" {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Value != "Bike rack" {
		t.Fatalf("unexpected facility: %+v", lines[1])
	}
}

func TestStationPopup_OptionalAvailability(t *testing.T) {
	d := StationDetails{StationID: "7000", Name: "Queen St W / Spadina"}
	if n := len(d.PopupLines()); n != 3 {
		t.Fatalf("lines=%d want 3 without status", n)
	}
	b, k := 4, 11
	d.BikesAvailable, d.DocksAvailable = &b, &k
	lines := d.PopupLines()
	if len(lines) != 5 || lines[3].Value != "4" || lines[4].Value != "11" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindShop, KindParking, KindShare, KindBikeway} {
		if !k.Valid() {
			t.Fatalf("%q should be valid", k)
		}
	}
	if Kind("bogus").Valid() {
		t.Fatalf("bogus kind should be invalid")
	}
}
