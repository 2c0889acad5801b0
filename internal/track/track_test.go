package track_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/smartrunning/smartrunning/internal/geo"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/track"
)

type countingObserver struct {
	results []string
}

func (o *countingObserver) ObserveExport(result string) {
	o.results = append(o.results, result)
}

func circleResult(t *testing.T, km float64) *routing.Result {
	t.Helper()
	coords, err := routing.CircleLoop(routing.DefaultStart, km)
	require.NoError(t, err)
	return &routing.Result{
		Coordinates:      coords,
		StartPoint:       routing.DefaultStart,
		ActualDistanceKm: geo.Round(geo.PathLengthKm(coords), 2),
		Surface:          routing.SurfaceTrail,
	}
}

func TestExport_Document(t *testing.T) {
	obs := &countingObserver{}
	exp := track.NewExporter(track.ExporterConfig{Enabled: true, Observer: obs, Logger: zerolog.Nop()})
	res := circleResult(t, 5)

	data, err := exp.Export(res)
	require.NoError(t, err)

	doc, err := gpx.ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, track.DefaultCreator, doc.Creator)
	require.Len(t, doc.Waypoints, 1)
	assert.Equal(t, track.WaypointName, doc.Waypoints[0].Name)
	assert.InDelta(t, routing.DefaultStart.Lat, doc.Waypoints[0].Latitude, 1e-9)
	assert.InDelta(t, routing.DefaultStart.Lon, doc.Waypoints[0].Longitude, 1e-9)

	require.Len(t, doc.Tracks, 1)
	tr := doc.Tracks[0]
	assert.Equal(t, track.TrackName, tr.Name)
	assert.Equal(t, track.TrackType, tr.Type)
	assert.Equal(t, track.Description(res), tr.Description)
	require.Len(t, tr.Segments, 1)
	require.Len(t, tr.Segments[0].Points, len(res.Coordinates))

	for i, p := range tr.Segments[0].Points {
		assert.InDelta(t, res.Coordinates[i].Lat, p.Latitude, 1e-9)
		assert.InDelta(t, res.Coordinates[i].Lon, p.Longitude, 1e-9)
		assert.False(t, p.Elevation.NotNull(), "point %d carries elevation", i)
	}

	assert.Equal(t, []string{track.ResultOK}, obs.results)
}

func TestExport_Disabled(t *testing.T) {
	obs := &countingObserver{}
	exp := track.NewExporter(track.ExporterConfig{Enabled: false, Observer: obs})

	data, err := exp.Export(circleResult(t, 2))
	assert.Nil(t, data)
	assert.ErrorIs(t, err, track.ErrCapabilityUnavailable)
	assert.False(t, exp.Enabled())
	assert.Equal(t, []string{track.ResultUnavailable}, obs.results)
}

func TestExport_NilResult(t *testing.T) {
	exp := track.NewExporter(track.ExporterConfig{Enabled: true})
	_, err := exp.Export(nil)
	assert.Error(t, err)
}

func TestExport_CustomCreator(t *testing.T) {
	exp := track.NewExporter(track.ExporterConfig{Enabled: true, Creator: "smartrun-cli"})
	data, err := exp.Export(circleResult(t, 1))
	require.NoError(t, err)

	doc, err := gpx.ParseBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "smartrun-cli", doc.Creator)
}

func TestValidate_RoundTrip(t *testing.T) {
	exp := track.NewExporter(track.ExporterConfig{Enabled: true})

	for _, km := range []float64{1, 3.5, 5, 10, 20} {
		res := circleResult(t, km)
		data, err := exp.Export(res)
		require.NoError(t, err)

		report := exp.Validate(data, res)
		require.NotNil(t, report)
		assert.Equal(t, 1, report.Tracks)
		assert.Equal(t, 1, report.Waypoints)
		assert.True(t, report.PointsMatch(), "km=%v points %d != %d", km, report.PointCount, report.ExpectedPoints)
		assert.True(t, report.LengthMatch(), "km=%v length %.3f vs %.3f", km, report.LengthKm, report.ExpectedKm)
	}
}

func TestValidate_Mismatch(t *testing.T) {
	var buf bytes.Buffer
	exp := track.NewExporter(track.ExporterConfig{Enabled: true, Logger: zerolog.New(&buf)})
	res := circleResult(t, 5)
	data, err := exp.Export(res)
	require.NoError(t, err)
	buf.Reset()

	other := *res
	other.Coordinates = res.Coordinates[:10]
	other.ActualDistanceKm = 50

	report := exp.Validate(data, &other)
	require.NotNil(t, report)
	assert.False(t, report.PointsMatch())
	assert.False(t, report.LengthMatch())
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestValidate_Unparseable(t *testing.T) {
	var buf bytes.Buffer
	exp := track.NewExporter(track.ExporterConfig{Enabled: true, Logger: zerolog.New(&buf)})

	assert.Nil(t, exp.Validate([]byte("not xml at all"), circleResult(t, 1)))
	assert.Contains(t, buf.String(), "failed to parse")
}

func TestValidate_SkippedWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	exp := track.NewExporter(track.ExporterConfig{Enabled: false, Logger: zerolog.New(&buf)})

	assert.Nil(t, exp.Validate([]byte("<gpx/>"), circleResult(t, 1)))
	assert.Contains(t, buf.String(), "skipped")
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "5.03 km Road", track.Description(&routing.Result{ActualDistanceKm: 5.03, Surface: routing.SurfaceRoad}))
	assert.Equal(t, "10.0 km Any", track.Description(&routing.Result{ActualDistanceKm: 10, Surface: routing.SurfaceAny}))
	assert.Equal(t, "5.0 km Trail", track.Description(&routing.Result{ActualDistanceKm: 5, Surface: routing.SurfaceTrail}))
	assert.Equal(t, "4.1 km Mixed", track.Description(&routing.Result{ActualDistanceKm: 4.1, Surface: routing.SurfaceMixed}))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Odense C, Denmark", "Odense_C__Denmark_route.gpx"},
		{"Aarhus", "Aarhus_route.gpx"},
		{"", "_route.gpx"},
		{"København Ø", "København_Ø_route.gpx"},
		{"10 Downing St.", "10_Downing_St__route.gpx"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, track.Filename(tt.in))
		})
	}
}
