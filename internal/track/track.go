// Package track encodes synthesized routes as GPX 1.1 documents.
package track

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/smartrunning/smartrunning/internal/routing"
)

// ErrCapabilityUnavailable is returned by Export when track encoding is disabled.
var ErrCapabilityUnavailable = errors.New("track encoding capability unavailable")

// Document constants.
const (
	DefaultCreator  = "SmartRunning App"
	TrackName       = "SmartRunning Route"
	TrackType       = "Running"
	WaypointName    = "Start/End"
	ContentType     = "application/gpx+xml"
	FilenameSuffix  = "_route.gpx"
	gpxVersion      = "1.1"
	lengthTolerance = 0.02
	minToleranceKm  = 0.05
)

// Export results reported to the observer.
const (
	ResultOK          = "ok"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Observer is notified of every export attempt.
type Observer interface {
	ObserveExport(result string)
}

// ExporterConfig holds configuration for the exporter.
type ExporterConfig struct {
	// Enabled mirrors Capabilities.TrackEncoding.
	Enabled bool

	// Creator is written to the gpx creator attribute. Defaults to DefaultCreator.
	Creator string

	// Observer is notified of export outcomes (optional).
	Observer Observer

	// Logger for export diagnostics.
	Logger zerolog.Logger
}

// Exporter builds GPX documents from route results.
type Exporter struct {
	enabled  bool
	creator  string
	observer Observer
	logger   zerolog.Logger
}

// NewExporter creates an exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	creator := cfg.Creator
	if creator == "" {
		creator = DefaultCreator
	}
	return &Exporter{
		enabled:  cfg.Enabled,
		creator:  creator,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Enabled reports whether the exporter can encode documents.
func (e *Exporter) Enabled() bool {
	return e.enabled
}

// Export encodes res as GPX XML. The output is validated before it is returned;
// validation findings are logged only.
func (e *Exporter) Export(res *routing.Result) ([]byte, error) {
	if !e.enabled {
		e.observe(ResultUnavailable)
		return nil, ErrCapabilityUnavailable
	}
	if res == nil {
		e.observe(ResultError)
		return nil, errors.New("nil route result")
	}

	doc := e.build(res)
	data, err := doc.ToXml(gpx.ToXmlParams{Version: gpxVersion, Indent: true})
	if err != nil {
		e.observe(ResultError)
		return nil, fmt.Errorf("encoding gpx: %w", err)
	}

	e.Validate(data, res)
	e.observe(ResultOK)
	return data, nil
}

func (e *Exporter) build(res *routing.Result) *gpx.GPX {
	points := make([]gpx.GPXPoint, len(res.Coordinates))
	for i, c := range res.Coordinates {
		points[i] = gpx.GPXPoint{Point: gpx.Point{Latitude: c.Lat, Longitude: c.Lon}}
	}

	return &gpx.GPX{
		Creator: e.creator,
		Waypoints: []gpx.GPXPoint{{
			Point: gpx.Point{Latitude: res.StartPoint.Lat, Longitude: res.StartPoint.Lon},
			Name:  WaypointName,
		}},
		Tracks: []gpx.GPXTrack{{
			Name:        TrackName,
			Type:        TrackType,
			Description: Description(res),
			Segments:    []gpx.GPXTrackSegment{{Points: points}},
		}},
	}
}

// Description renders "<distance> km <surface>". Whole distances keep one
// decimal, so 5 reads "5.0 km".
func Description(res *routing.Result) string {
	km := strconv.FormatFloat(res.ActualDistanceKm, 'f', -1, 64)
	if !strings.Contains(km, ".") {
		km += ".0"
	}
	return km + " km " + string(res.Surface)
}

// ValidationReport summarizes a re-parse of an exported document.
type ValidationReport struct {
	Creator        string  `json:"creator"`
	Tracks         int     `json:"tracks"`
	Waypoints      int     `json:"waypoints"`
	PointCount     int     `json:"pointCount"`
	ExpectedPoints int     `json:"expectedPoints"`
	LengthKm       float64 `json:"lengthKm"`
	ExpectedKm     float64 `json:"expectedKm"`
}

// PointsMatch reports whether the track holds exactly the input coordinates.
func (r *ValidationReport) PointsMatch() bool {
	return r.PointCount == r.ExpectedPoints
}

// LengthMatch reports whether the re-parsed length is within tolerance of the
// route distance.
func (r *ValidationReport) LengthMatch() bool {
	tol := math.Max(r.ExpectedKm*lengthTolerance, minToleranceKm)
	return math.Abs(r.LengthKm-r.ExpectedKm) <= tol
}

// Validate re-parses data and compares it with res. It never fails: findings
// are logged and nil is returned when validation could not run.
func (e *Exporter) Validate(data []byte, res *routing.Result) *ValidationReport {
	if !e.enabled {
		e.logger.Info().Msg("gpx validation skipped: track encoding unavailable")
		return nil
	}

	parsed, err := gpx.ParseBytes(data)
	if err != nil {
		head := string(data)
		if len(head) > 100 {
			head = head[:100] + "..."
		}
		e.logger.Warn().Err(err).Str("head", head).Msg("gpx validation failed to parse document")
		return nil
	}

	report := &ValidationReport{
		Creator:   parsed.Creator,
		Tracks:    len(parsed.Tracks),
		Waypoints: len(parsed.Waypoints),
		LengthKm:  parsed.Length2D() / 1000,
	}
	for _, t := range parsed.Tracks {
		for _, seg := range t.Segments {
			report.PointCount += len(seg.Points)
		}
	}
	if res != nil {
		report.ExpectedPoints = len(res.Coordinates)
		report.ExpectedKm = res.ActualDistanceKm
	}

	ev := e.logger.Info()
	if !report.PointsMatch() || !report.LengthMatch() {
		ev = e.logger.Warn()
	}
	ev.Str("creator", report.Creator).
		Int("tracks", report.Tracks).
		Int("waypoints", report.Waypoints).
		Int("points", report.PointCount).
		Int("expected_points", report.ExpectedPoints).
		Bool("points_match", report.PointsMatch()).
		Float64("length_km", report.LengthKm).
		Float64("expected_km", report.ExpectedKm).
		Bool("length_match", report.LengthMatch()).
		Msg("gpx validation")

	return report
}

func (e *Exporter) observe(result string) {
	if e.observer != nil {
		e.observer.ObserveExport(result)
	}
}

// Filename derives a download name from the start location text.
func Filename(startLocation string) string {
	var b strings.Builder
	for _, r := range startLocation {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString(FilenameSuffix)
	return b.String()
}
