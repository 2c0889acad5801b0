package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/apiclient"
)

const msgGPXUnavailable = "GPX export unavailable"

type cli struct {
	client  *apiclient.Client
	session *apiclient.Session
	store   *sessionStore
	out     io.Writer
	errOut  io.Writer
	getenv  env
}

type command struct {
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commandOrder = []string{
	"register", "login", "logout", "profile",
	"generate", "save", "list", "get", "delete", "gpx",
}

var commands = map[string]command{
	"register": {"create an account and sign in", runRegister},
	"login":    {"sign in", runLogin},
	"logout":   {"forget the stored token", runLogout},
	"profile":  {"show the signed-in user", runProfile},
	"generate": {"generate a running loop", runGenerate},
	"save":     {"generate a loop and save it as an activity", runSave},
	"list":     {"list saved activities", runList},
	"get":      {"show one activity", runGet},
	"delete":   {"delete an activity", runDelete},
	"gpx":      {"download an activity's GPX track", runGPX},
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) requireLogin() error {
	if !c.session.Authenticated() {
		return errors.New("not logged in, run smartrun login first")
	}
	return nil
}

func runRegister(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (or $SMARTRUN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := c.client.Register(ctx, c.session, *name, *email, c.password(*password))
	if !res.OK {
		return errors.New(res.Message)
	}
	if err := c.store.Save(c.session); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Registered and logged in as %s\n", res.Data.Email)
	return nil
}

func runLogin(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (or $SMARTRUN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := c.client.Login(ctx, c.session, *email, c.password(*password))
	if !res.OK {
		return errors.New(res.Message)
	}
	if err := c.store.Save(c.session); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Logged in as %s\n", res.Data.Email)
	return nil
}

func (c *cli) password(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return c.getenv(envPassword)
}

func runLogout(_ context.Context, c *cli, _ []string) error {
	c.client.Logout(c.session)
	if err := c.store.Save(c.session); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func runProfile(ctx context.Context, c *cli, _ []string) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	res := c.client.GetProfile(ctx, c.session)
	if !res.OK {
		return errors.New(res.Message)
	}
	fmt.Fprintf(c.out, "%s <%s>\nMember since %s\n", res.Data.Name, res.Data.Email, res.Data.CreatedAt.Format("2006-01-02"))
	return nil
}

type routeFlags struct {
	start    *string
	distance *float64
	surface  *string
}

func addRouteFlags(fs *flag.FlagSet) routeFlags {
	return routeFlags{
		start:    fs.StringP("start", "s", "", "start location, e.g. \"Odense C\""),
		distance: fs.Float64P("distance", "d", 5, "target distance in km"),
		surface:  fs.String("surface", "Any", "surface preference: Any, Road, Trail or Mixed"),
	}
}

func (c *cli) generate(ctx context.Context, rf routeFlags) (*models.RouteResponse, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}
	res := c.client.GenerateRoute(ctx, c.session, *rf.start, *rf.distance, *rf.surface)
	if !res.OK {
		return nil, errors.New(res.Message)
	}
	printRoute(c.out, res.Data)
	return res.Data, nil
}

// printRoute prints the route statistics. A degraded route still has them;
// the advisory goes on its own warning line.
func printRoute(w io.Writer, r *models.RouteResponse) {
	if r.Error != "" {
		fmt.Fprintf(w, "Warning: %s\n", r.Error)
	}
	start := r.StartLocation
	if start == "" {
		start = fmt.Sprintf("%.4f, %.4f", r.StartPoint[0], r.StartPoint[1])
	}
	fmt.Fprintf(w, "Start:     %s\n", start)
	fmt.Fprintf(w, "Distance:  %.2f km (target %.2f km)\n", r.Distance, r.TargetDistance)
	fmt.Fprintf(w, "Surface:   %s\n", r.SurfaceType)
	fmt.Fprintf(w, "Elevation: %.0f m\n", r.ElevationGain)
	fmt.Fprintf(w, "Time:      %.0f min\n", r.EstimatedTime)
	fmt.Fprintf(w, "Points:    %d\n", len(r.Coordinates))
}

func runGenerate(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("generate")
	rf := addRouteFlags(fs)
	gpx := fs.Bool("gpx", false, "also download the route as GPX")
	dir := fs.StringP("out", "o", ".", "directory for the GPX file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	route, err := c.generate(ctx, rf)
	if err != nil {
		return err
	}
	if !*gpx {
		return nil
	}
	return c.writeGPX(c.client.DownloadGPX(ctx, c.session, route), *dir)
}

func runSave(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("save")
	rf := addRouteFlags(fs)
	name := fs.String("name", "", "activity name (default \"Route from <start>\")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	route, err := c.generate(ctx, rf)
	if err != nil {
		return err
	}
	res := c.client.SaveActivity(ctx, c.session, route, *name)
	if !res.OK {
		return errors.New(res.Message)
	}
	fmt.Fprintf(c.out, "Saved %q as %s\n", res.Data.Name, res.Data.ID)
	return nil
}

func runList(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("list")
	limit := fs.IntP("limit", "n", 20, "page size")
	cursor := fs.String("cursor", "", "cursor from a previous page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireLogin(); err != nil {
		return err
	}

	res := c.client.ListActivities(ctx, c.session, *limit, *cursor)
	if !res.OK {
		return errors.New(res.Message)
	}
	if len(res.Data.Items) == 0 {
		fmt.Fprintln(c.out, "No activities")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tKM\tSURFACE")
	for _, a := range res.Data.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", a.ID, a.CreatedAt.Format("2006-01-02"), a.Name, a.DistanceKm, a.Surface)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if next := res.Data.Meta.NextCursor; next != nil && *next != "" {
		fmt.Fprintf(c.out, "More: smartrun list --cursor %s\n", *next)
	}
	return nil
}

func oneID(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: smartrun %s <activity-id>", errUsage, fs.Name())
	}
	return fs.Arg(0), nil
}

func runGet(ctx context.Context, c *cli, args []string) error {
	id, err := oneID(c.flags("get"), args)
	if err != nil {
		return err
	}
	if err := c.requireLogin(); err != nil {
		return err
	}

	res := c.client.GetActivity(ctx, c.session, id)
	if !res.OK {
		return errors.New(res.Message)
	}
	a := res.Data
	fmt.Fprintf(c.out, "%s\n", a.Name)
	fmt.Fprintf(c.out, "ID:        %s\n", a.ID)
	fmt.Fprintf(c.out, "Type:      %s\n", a.ActivityType)
	if a.StartLocation != "" {
		fmt.Fprintf(c.out, "Start:     %s\n", a.StartLocation)
	}
	fmt.Fprintf(c.out, "Distance:  %.2f km\n", a.DistanceKm)
	fmt.Fprintf(c.out, "Duration:  %.0f min\n", a.DurationSeconds/60)
	fmt.Fprintf(c.out, "Pace:      %.2f min/km\n", a.AveragePace)
	if a.Surface != "" {
		fmt.Fprintf(c.out, "Surface:   %s\n", a.Surface)
	}
	if strings.TrimSpace(a.Notes) != "" {
		fmt.Fprintf(c.out, "Notes:     %s\n", a.Notes)
	}
	return nil
}

func runDelete(ctx context.Context, c *cli, args []string) error {
	id, err := oneID(c.flags("delete"), args)
	if err != nil {
		return err
	}
	if err := c.requireLogin(); err != nil {
		return err
	}

	res := c.client.DeleteActivity(ctx, c.session, id)
	if !res.OK {
		return errors.New(res.Message)
	}
	fmt.Fprintf(c.out, "Deleted %s\n", id)
	return nil
}

func runGPX(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("gpx")
	dir := fs.StringP("out", "o", ".", "directory for the GPX file")
	id, err := oneID(fs, args)
	if err != nil {
		return err
	}
	if err := c.requireLogin(); err != nil {
		return err
	}
	return c.writeGPX(c.client.ActivityGPX(ctx, c.session, id), *dir)
}

func (c *cli) writeGPX(res apiclient.Result[*apiclient.GPXFile], dir string) error {
	if res.Unavailable() {
		return errors.New(msgGPXUnavailable)
	}
	if !res.OK {
		return errors.New(res.Message)
	}
	path := filepath.Join(dir, filepath.Base(res.Data.Filename))
	if err := os.WriteFile(path, res.Data.Data, 0o644); err != nil { //nolint:gosec // exported tracks are meant to be shared
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(c.out, "Wrote %s\n", path)
	return nil
}
