package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/usecases"
	"github.com/wangshifu/cyclemap/internal/pkg/routefmt"
)

// buildSchema constructs the GraphQL schema for the trip document.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.String},
			"lat":  &graphql.Field{Type: graphql.Float},
			"lon":  &graphql.Field{Type: graphql.Float},
		},
	})

	dayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Day",
		Fields: graphql.Fields{
			"index": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.IndexedDay).Index, nil
				},
			},
			"day": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if d := p.Source.(domain.IndexedDay).Day; d.HasDay() {
						return d.Day, nil
					}
					return nil, nil
				},
			},
			"date": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.IndexedDay).Day.Date, nil
				},
			},
			"title": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.IndexedDay).Day.Title, nil
				},
			},
			"distanceKm": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if km := p.Source.(domain.IndexedDay).Day.DistanceKm; km != nil {
						return *km, nil
					}
					return nil, nil
				},
			},
			"clue": &graphql.Field{
				Type:        graphql.String,
				Description: "Free-text clue merged from the day's clue file",
				Resolve:     extraString("clue"),
			},
			"video": &graphql.Field{
				Type:        graphql.String,
				Description: "Video reference carried with the day record",
				Resolve:     extraString("video"),
			},
			"points": &graphql.Field{
				Type: graphql.NewList(pointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.IndexedDay).Day.Points, nil
				},
			},
			"routeType": &graphql.Field{
				Type:        graphql.String,
				Description: "LineString, MultiLineString, or null when the day has no route",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if r := domain.GetDayRoute(p.Source.(domain.IndexedDay).Day); r != nil {
						return string(r.Type()), nil
					}
					return nil, nil
				},
			},
			"coordinates": &graphql.Field{
				Type:        graphql.Int,
				Description: "Number of coordinates in the day's route",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return domain.GetDayRoute(p.Source.(domain.IndexedDay).Day).NumCoords(), nil
				},
			},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DistanceStats",
		Fields: graphql.Fields{
			"total_km":           &graphql.Field{Type: graphql.Float},
			"days_with_distance": &graphql.Field{Type: graphql.Int},
			"total_days":         &graphql.Field{Type: graphql.Int},
			"average_km":         &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	mapViewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapView",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: pointType},
			"zoom":   &graphql.Field{Type: graphql.Int},
			"bounds": &graphql.Field{Type: boundsType},
		},
	})

	tripType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trip",
		Fields: graphql.Fields{
			"title":       &graphql.Field{Type: graphql.String},
			"author":      &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"revision":    &graphql.Field{Type: graphql.Int},
			"days":        &graphql.Field{Type: graphql.NewList(dayType)},
		},
	})

	// tripResult flattens meta for the Trip object; days keep document order.
	tripResult := func(doc domain.TripData, rev uint64) map[string]interface{} {
		days := make([]domain.IndexedDay, len(doc.Days))
		for i, d := range doc.Days {
			days[i] = domain.IndexedDay{Index: i, Day: d}
		}
		return map[string]interface{}{
			"title":       doc.Meta.Title,
			"author":      doc.Meta.Author,
			"description": doc.Meta.Description,
			"revision":    int(rev),
			"days":        days,
		}
	}

	indexArg := graphql.FieldConfigArgument{
		"index": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trip": &graphql.Field{
				Type:        tripType,
				Description: "The current trip document",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return tripResult(deps.Trips.Versioned(p.Context)), nil
				},
			},
			"days": &graphql.Field{
				Type:        graphql.NewList(dayType),
				Description: "Days newest first",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trips.SortedDays(p.Context), nil
				},
			},
			"day": &graphql.Field{
				Type:        dayType,
				Description: "A day by document index",
				Args:        indexArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					idx := p.Args["index"].(int)
					day, err := deps.Trips.Day(p.Context, idx)
					if err != nil {
						return nil, err
					}
					return domain.IndexedDay{Index: idx, Day: day}, nil
				},
			},
			"stats": &graphql.Field{
				Type: statsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trips.Stats(p.Context), nil
				},
			},
			"bounds": &graphql.Field{
				Type: mapViewType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if view := deps.Trips.Bounds(p.Context); view != nil {
						return view, nil
					}
					return nil, nil
				},
			},
			"route": &graphql.Field{
				Type:        graphql.String,
				Description: "Encoded route of one day, or the merged trip when index is omitted",
				Args: graphql.FieldConfigArgument{
					"index":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: usecases.AllDays},
					"crs":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.WGS84)},
					"format": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(routefmt.GeoJSON)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					crs, err := domain.ParseCRS(p.Args["crs"].(string))
					if err != nil {
						return nil, err
					}
					format, err := routefmt.ParseFormat(p.Args["format"].(string))
					if err != nil {
						return nil, err
					}
					out, err := deps.Routes.Route(p.Context, p.Args["index"].(int), crs, format)
					if err != nil {
						return nil, err
					}
					return string(out.Body), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addDay": &graphql.Field{
				Type:        dayType,
				Description: "Append a day without geometry",
				Args: graphql.FieldConfigArgument{
					"day":   &graphql.ArgumentConfig{Type: graphql.Int},
					"date":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"title": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rec := domain.DayRecord{Date: p.Args["date"].(string), Points: []domain.Point{}, NoDay: true}
					if v, ok := p.Args["day"].(int); ok {
						rec.Day, rec.NoDay = v, false
					}
					if v, ok := p.Args["title"].(string); ok {
						rec.Title = v
					}
					doc, err := deps.Trips.AddDay(p.Context, rec)
					if err != nil {
						return nil, err
					}
					last := len(doc.Days) - 1
					return domain.IndexedDay{Index: last, Day: doc.Days[last]}, nil
				},
			},
			"deleteDay": &graphql.Field{
				Type: tripType,
				Args: indexArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					doc, err := deps.Trips.DeleteDay(p.Context, p.Args["index"].(int))
					if err != nil {
						return nil, err
					}
					return tripResult(doc, deps.Trips.Revision()), nil
				},
			},
			"regenerateRoute": &graphql.Field{
				Type: dayType,
				Args: indexArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					idx := p.Args["index"].(int)
					doc, err := deps.Trips.RegenerateRoute(p.Context, idx)
					if err != nil {
						return nil, err
					}
					return domain.IndexedDay{Index: idx, Day: doc.Days[idx]}, nil
				},
			},
			"resetTrip": &graphql.Field{
				Type: tripType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return tripResult(deps.Trips.Reset(p.Context), deps.Trips.Revision()), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// extraString resolves a string member kept in a day's Extras. Absent or
// non-string values resolve to null.
func extraString(key string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		var v string
		ok, err := p.Source.(domain.IndexedDay).Day.Extras.Get(key, &v)
		if !ok || err != nil {
			return nil, nil
		}
		return v, nil
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
