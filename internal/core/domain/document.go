package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultTripTitle is the title of an empty trip document.
const DefaultTripTitle = "骑行旅行记录"

// DefaultTripData returns an empty document.
func DefaultTripData() TripData {
	return TripData{
		Meta: TripMeta{Title: DefaultTripTitle},
		Days: []DayRecord{},
	}
}

// ImportTripData parses a trip document. It fails with ErrMalformedDocument when
// the JSON is invalid, meta or days is missing, or days is not an array. Days are
// taken as-is; stored distances are not recomputed.
func ImportTripData(raw []byte) (TripData, error) {
	var t TripData
	if err := t.UnmarshalJSON(raw); err != nil {
		return TripData{}, err
	}
	return t, nil
}

// UnmarshalJSON applies the same validation as ImportTripData.
func (t *TripData) UnmarshalJSON(raw []byte) error {
	members, extras, err := splitObject(raw, tripKeys...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	metaRaw, ok := members["meta"]
	if !ok || isNull(metaRaw) {
		return fmt.Errorf("%w: missing meta", ErrMalformedDocument)
	}
	daysRaw, ok := members["days"]
	if !ok || isNull(daysRaw) {
		return fmt.Errorf("%w: missing days", ErrMalformedDocument)
	}
	if trimmed := bytes.TrimSpace(daysRaw); len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: days must be an array", ErrMalformedDocument)
	}

	var out TripData
	if err := json.Unmarshal(metaRaw, &out.Meta); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := json.Unmarshal(daysRaw, &out.Days); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if out.Days == nil {
		out.Days = []DayRecord{}
	}
	out.Extras = extras
	*t = out
	return nil
}

// ExportTripData serializes the document as JSON indented with two spaces.
func ExportTripData(t TripData) ([]byte, error) {
	compact, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("export trip data: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("export trip data: %w", err)
	}
	return buf.Bytes(), nil
}

// AddDay appends a day. The appended record gets a freshly computed distance.
func AddDay(t TripData, day DayRecord) TripData {
	days := make([]DayRecord, 0, len(t.Days)+1)
	days = append(days, t.Days...)
	days = append(days, UpdateDayDistance(day))
	return TripData{Meta: t.Meta, Days: days, Extras: t.Extras}
}

// UpdateDay applies patch to the day at index. An out-of-range index leaves the
// document untouched and returns it unchanged.
func UpdateDay(t TripData, index int, patch DayPatch) TripData {
	if index < 0 || index >= len(t.Days) {
		return t
	}
	days := append([]DayRecord(nil), t.Days...)
	days[index] = patch.Apply(t.Days[index])
	return TripData{Meta: t.Meta, Days: days, Extras: t.Extras}
}

// ReplaceDay swaps the record at index. Out-of-range leaves the document untouched.
func ReplaceDay(t TripData, index int, day DayRecord) TripData {
	if index < 0 || index >= len(t.Days) {
		return t
	}
	days := append([]DayRecord(nil), t.Days...)
	days[index] = day
	return TripData{Meta: t.Meta, Days: days, Extras: t.Extras}
}

// DeleteDay removes the day at index. Out-of-range leaves the document untouched.
func DeleteDay(t TripData, index int) TripData {
	if index < 0 || index >= len(t.Days) {
		return t
	}
	days := make([]DayRecord, 0, len(t.Days)-1)
	days = append(days, t.Days[:index]...)
	days = append(days, t.Days[index+1:]...)
	return TripData{Meta: t.Meta, Days: days, Extras: t.Extras}
}

// RecomputeDistances refreshes DistanceKm on every day.
func RecomputeDistances(t TripData) TripData {
	days := make([]DayRecord, len(t.Days))
	for i, d := range t.Days {
		days[i] = UpdateDayDistance(d)
	}
	return TripData{Meta: t.Meta, Days: days, Extras: t.Extras}
}

// Field is an optional patch member. Set distinguishes an absent member from an
// explicit zero value or null.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Field.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// DayPatch is a partial DayRecord. distanceKm is never patched directly; it is
// recomputed when points or the route change. An extra set to JSON null is removed.
type DayPatch struct {
	Day          Field[*int] // nil clears the day number
	Date         Field[string]
	Title        Field[string]
	Points       Field[[]Point]
	RouteGeoJSON Field[*Route]
	Extras       Extras
}

// Apply returns a patched copy of day.
func (p DayPatch) Apply(day DayRecord) DayRecord {
	out := day.Clone()
	if p.Day.Set {
		out.Day, out.NoDay = 0, p.Day.Value == nil
		if p.Day.Value != nil {
			out.Day = *p.Day.Value
		}
	}
	if p.Date.Set {
		out.Date = p.Date.Value
	}
	if p.Title.Set {
		out.Title = p.Title.Value
	}
	if p.Points.Set {
		out.Points = append([]Point{}, p.Points.Value...)
	}
	if p.RouteGeoJSON.Set {
		out.RouteGeoJSON = p.RouteGeoJSON.Value.Clone()
	}
	if len(p.Extras) > 0 {
		if out.Extras == nil {
			out.Extras = make(Extras)
		}
		for k, v := range p.Extras {
			if isNull(v) {
				delete(out.Extras, k)
				continue
			}
			out.Extras[k] = v
		}
		if len(out.Extras) == 0 {
			out.Extras = nil
		}
	}
	if p.Points.Set || p.RouteGeoJSON.Set {
		out = UpdateDayDistance(out)
	}
	return out
}

// UnmarshalJSON records which members were present.
func (p *DayPatch) UnmarshalJSON(data []byte) error {
	members, extras, err := splitObject(data, dayKeys...)
	if err != nil {
		return fmt.Errorf("day patch: %w", err)
	}
	var out DayPatch
	for key, raw := range members {
		var err error
		switch key {
		case "day":
			out.Day.Set = true
			err = json.Unmarshal(raw, &out.Day.Value)
		case "date":
			out.Date.Set = true
			err = json.Unmarshal(raw, &out.Date.Value)
		case "title":
			out.Title.Set = true
			err = json.Unmarshal(raw, &out.Title.Value)
		case "points":
			out.Points.Set = true
			err = json.Unmarshal(raw, &out.Points.Value)
		case "routeGeoJSON":
			out.RouteGeoJSON.Set = true
			if !isNull(raw) {
				out.RouteGeoJSON.Value = &Route{}
				err = json.Unmarshal(raw, out.RouteGeoJSON.Value)
			}
		}
		if err != nil {
			return fmt.Errorf("day patch %s: %w", key, err)
		}
	}
	out.Extras = extras
	*p = out
	return nil
}

// Validate checks the coordinates the patch would write.
func (p DayPatch) Validate() error {
	if p.Points.Set {
		if err := validatePoints(p.Points.Value); err != nil {
			return err
		}
	}
	if p.RouteGeoJSON.Set {
		return p.RouteGeoJSON.Value.Validate()
	}
	return nil
}

// Touched reports whether the patch changes anything.
func (p DayPatch) Touched() bool {
	return p.Day.Set || p.Date.Set || p.Title.Set || p.Points.Set || p.RouteGeoJSON.Set || len(p.Extras) > 0
}
