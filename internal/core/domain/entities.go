package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

var (
	dayKeys  = []string{"day", "date", "title", "points", "routeGeoJSON", "distanceKm"}
	metaKeys = []string{"title", "author", "description"}
	tripKeys = []string{"meta", "days"}
)

// DayRecord is one day of the trip. Members other than the typed ones (video,
// segments, clue, meta, ...) are carried in Extras and never interpreted.
//
// NoDay marks a record without a day number; Day is then ignored. The zero
// value carries a number, so Day 0 is a real day.
type DayRecord struct {
	Day          int      `json:"day"`
	NoDay        bool     `json:"-"`
	Date         string   `json:"date"`
	Title        string   `json:"title,omitempty"`
	Points       []Point  `json:"points"`
	RouteGeoJSON *Route   `json:"routeGeoJSON"`
	DistanceKm   *float64 `json:"distanceKm"`
	Extras       Extras   `json:"-"`
}

type dayRecordJSON struct {
	Day          *int     `json:"day,omitempty"`
	Date         string   `json:"date"`
	Title        string   `json:"title,omitempty"`
	Points       []Point  `json:"points"`
	RouteGeoJSON *Route   `json:"routeGeoJSON"`
	DistanceKm   *float64 `json:"distanceKm"`
}

// MarshalJSON writes the typed members followed by the extras.
func (d DayRecord) MarshalJSON() ([]byte, error) {
	points := d.Points
	if points == nil {
		points = []Point{}
	}
	var num *int
	if !d.NoDay {
		num = &d.Day
	}
	base, err := json.Marshal(dayRecordJSON{
		Day:          num,
		Date:         d.Date,
		Title:        d.Title,
		Points:       points,
		RouteGeoJSON: d.RouteGeoJSON,
		DistanceKm:   d.DistanceKm,
	})
	if err != nil {
		return nil, err
	}
	return joinObject(base, d.Extras, dayKeys...)
}

// UnmarshalJSON reads the typed members and keeps everything else in Extras.
func (d *DayRecord) UnmarshalJSON(data []byte) error {
	members, extras, err := splitObject(data, dayKeys...)
	if err != nil {
		return fmt.Errorf("day record: %w", err)
	}
	out := DayRecord{NoDay: true}
	for key, raw := range members {
		if isNull(raw) {
			continue
		}
		var target any
		switch key {
		case "day":
			out.NoDay = false
			target = &out.Day
		case "date":
			target = &out.Date
		case "title":
			target = &out.Title
		case "points":
			target = &out.Points
		case "routeGeoJSON":
			out.RouteGeoJSON = &Route{}
			target = out.RouteGeoJSON
		case "distanceKm":
			out.DistanceKm = new(float64)
			target = out.DistanceKm
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("day record %s: %w", key, err)
		}
	}
	if out.Points == nil {
		out.Points = []Point{}
	}
	out.Extras = extras
	*d = out
	return nil
}

// HasDay reports whether the record carries a day number.
func (d DayRecord) HasDay() bool {
	return !d.NoDay
}

// Validate rejects out-of-range coordinates in the points or the route.
func (d DayRecord) Validate() error {
	if err := validatePoints(d.Points); err != nil {
		return err
	}
	return d.RouteGeoJSON.Validate()
}

func validatePoints(points []Point) error {
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (d DayRecord) Clone() DayRecord {
	out := d
	out.Points = append([]Point(nil), d.Points...)
	if out.Points == nil {
		out.Points = []Point{}
	}
	out.RouteGeoJSON = d.RouteGeoJSON.Clone()
	if d.DistanceKm != nil {
		v := *d.DistanceKm
		out.DistanceKm = &v
	}
	out.Extras = d.Extras.Clone()
	return out
}

// TripMeta describes the trip.
type TripMeta struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Extras      Extras `json:"-"`
}

type tripMetaJSON struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

func (m TripMeta) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(tripMetaJSON{Title: m.Title, Author: m.Author, Description: m.Description})
	if err != nil {
		return nil, err
	}
	return joinObject(base, m.Extras, metaKeys...)
}

func (m *TripMeta) UnmarshalJSON(data []byte) error {
	members, extras, err := splitObject(data, metaKeys...)
	if err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	var out TripMeta
	fields := map[string]*string{"title": &out.Title, "author": &out.Author, "description": &out.Description}
	for key, raw := range members {
		if isNull(raw) {
			continue
		}
		if err := json.Unmarshal(raw, fields[key]); err != nil {
			return fmt.Errorf("meta %s: %w", key, err)
		}
	}
	out.Extras = extras
	*m = out
	return nil
}

// TripData is the whole trip document. Operations in this package never modify a
// TripData in place; they return a new value.
type TripData struct {
	Meta   TripMeta    `json:"meta"`
	Days   []DayRecord `json:"days"`
	Extras Extras      `json:"-"`
}

type tripDataJSON struct {
	Meta TripMeta    `json:"meta"`
	Days []DayRecord `json:"days"`
}

func (t TripData) MarshalJSON() ([]byte, error) {
	days := t.Days
	if days == nil {
		days = []DayRecord{}
	}
	base, err := json.Marshal(tripDataJSON{Meta: t.Meta, Days: days})
	if err != nil {
		return nil, err
	}
	return joinObject(base, t.Extras, tripKeys...)
}

// Clone returns a deep copy of the document.
func (t TripData) Clone() TripData {
	out := TripData{Meta: t.Meta, Extras: t.Extras.Clone()}
	out.Meta.Extras = t.Meta.Extras.Clone()
	out.Days = make([]DayRecord, len(t.Days))
	for i, d := range t.Days {
		out.Days[i] = d.Clone()
	}
	return out
}

// Snapshot is a persisted copy of a trip document.
type Snapshot struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Days      int       `json:"days"`
	TotalKm   float64   `json:"total_km"`
	Document  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TripEventKind names a change to the trip document.
type TripEventKind string

const (
	EventImported    TripEventKind = "imported"
	EventReset       TripEventKind = "reset"
	EventDayAdded    TripEventKind = "day_added"
	EventDayUpdated  TripEventKind = "day_updated"
	EventDayDeleted  TripEventKind = "day_deleted"
	EventRouteSet    TripEventKind = "route_set"
	EventDefaultLoad TripEventKind = "default_loaded"
	EventRestored    TripEventKind = "restored"
)

// TripEvent is published after every accepted change.
type TripEvent struct {
	Kind       TripEventKind `json:"kind"`
	Revision   uint64        `json:"revision"`
	DayIndex   *int          `json:"day_index,omitempty"`
	Days       int           `json:"days"`
	TotalKm    float64       `json:"total_km"`
	OccurredAt time.Time     `json:"occurred_at"`
}
