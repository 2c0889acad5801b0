// Command smartrun is a terminal client for the SmartRunning API.
//
//	smartrun [--api URL] <command> [flags]
//
// Commands: register, login, logout, profile, generate, save, list, get,
// delete, gpx. The session token is kept in $SMARTRUN_SESSION (default
// <user config dir>/smartrun/session.json); $SMARTRUN_TOKEN overrides it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/smartrunning/smartrunning/internal/apiclient"
)

// Version is set at compile time via ldflags.
var Version = "dev"

// errUsage marks errors that should be followed by the usage text.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// env looks up environment variables; os.Getenv in production.
type env func(string) string

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv env) int {
	global := flag.NewFlagSet("smartrun", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	apiURL := global.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	verbose := global.BoolP("verbose", "v", false, "log requests to stderr")
	global.Usage = func() { usage(stderr, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if global.NArg() == 0 {
		usage(stderr, global)
		return 2
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()

	store := newSessionStore(getenv)
	session, err := store.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *apiURL != "" {
		session.BaseURL = apiclient.NewSession(*apiURL).BaseURL
	}
	if token := getenv(envToken); token != "" {
		session.Token = token
	}

	cli := &cli{
		client:  apiclient.New(apiclient.Config{Logger: logger}),
		session: session,
		store:   store,
		out:     stdout,
		errOut:  stderr,
		getenv:  getenv,
	}

	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", name)
		usage(stderr, global)
		return 2
	}

	if err := cmd.run(ctx, cli, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintf(w, "smartrun %s\n\nUsage: smartrun [flags] <command> [args]\n\nCommands:\n", Version)
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nFlags:")
	fmt.Fprint(w, global.FlagUsages())
}
