package telemetry

// Span names used by the trip service and workflows.
const (
	SpanTripImport  = "trip.import"
	SpanTripFetch   = "trip.fetch"
	SpanTripSave    = "trip.snapshot.save"
	SpanRouteEncode = "route.encode"
	SpanMapRender   = "map.render"
)

// Span attribute keys.
const (
	AttrSource     = "trip.source"
	AttrDays       = "trip.days"
	AttrStale      = "trip.fetch.stale"
	AttrSnapshotID = "trip.snapshot.id"
	AttrCRS        = "route.crs"
	AttrFormat     = "route.format"
)
