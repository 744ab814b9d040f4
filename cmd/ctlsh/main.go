// Ctlsh - SDN Controller Shell
//
// An IOS-style CLI for a software-defined network controller's
// management plane. Commands are declared in YAML descriptors and
// interpreted against the controller's object model:
//
//	ctlsh                                   # interactive shell
//	ctlsh exec "configure" "forwarding access-priority 20"
//	ctlsh complete "show sw"
//	ctlsh running-config [switch [<dpid>]]
//	ctlsh lint                              # check every descriptor
//
// The backend holding the object model is the controller's REST API by
// default. --backend redis talks to a Redis mirror of the same tables and
// --backend memory keeps everything in the process.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ctlsh/pkg/audit"
	"github.com/newtron-network/ctlsh/pkg/cli"
	"github.com/newtron-network/ctlsh/pkg/command"
	"github.com/newtron-network/ctlsh/pkg/desc"
	"github.com/newtron-network/ctlsh/pkg/settings"
	"github.com/newtron-network/ctlsh/pkg/store"
	"github.com/newtron-network/ctlsh/pkg/util"
	"github.com/newtron-network/ctlsh/pkg/version"
)

var (
	// Backend selection, overriding settings
	backendKind string
	controller  string
	redisAddr   string
	redisDB     int
	recordFile  string

	// Output
	verbose   bool
	logLevel  string
	logFormat string
	noColor   bool

	// Global state
	userSettings *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Red("Error: ")+err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "ctlsh",
	Short:             "SDN Controller Shell",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Ctlsh is a command shell for the controller's management plane.

Without a sub-command it starts an interactive shell. Type '?' at any
point for the words that may follow, and TAB to complete.

  login> configure
  (config)# switch 00:00:00:00:00:00:00:01
  (config-switch)# alias core1`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Quiet by default, debug on -v, --log-level wins
		level := "warn"
		if verbose {
			level = "debug"
		}
		if logLevel != "" {
			level = logLevel
		}
		if err := util.SetLogLevel(level); err != nil {
			return err
		}
		if err := util.SetLogFormat(logFormat); err != nil {
			return err
		}
		cli.AutoColor(os.Stderr)
		if noColor {
			cli.SetColor(false)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return NewShell(a).Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendKind, "backend", "", "Object store: rest, redis or memory")
	rootCmd.PersistentFlags().StringVar(&controller, "controller", "", "Controller REST address (host:port or URL)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address for --backend redis")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", -1, "Redis database number")
	rootCmd.PersistentFlags().StringVar(&recordFile, "record", "", "Append every REST request to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log line format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "shell", Title: "Shell Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)
	for _, cmd := range []*cobra.Command{execCmd, completeCmd, runningConfigCmd, lintCmd} {
		cmd.GroupID = "shell"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("ctlsh")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (use 'make build' for version info)\n", tool)
	} else {
		fmt.Printf("%s %s (%s)\n", tool, version.Version, version.GitCommit)
	}
}

// app is everything a shell or one-shot command needs: the engine, its
// backend, and the session the lines run in.
type app struct {
	engine  *command.Engine
	backend store.Backend
	session *command.Session
	audit   audit.Logger
	closers []io.Closer
}

// Close releases the backend connection, the audit log and the request
// recording file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			util.Debugf("close: %v", err)
		}
	}
}

// openApp resolves the backend from flags and settings and builds the
// engine over the built-in descriptors.
func openApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if userSettings == nil {
		userSettings = &settings.Settings{}
	}
	a := &app{session: command.NewSession(currentUser())}

	backend, err := openBackend(ctx, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend

	if path := userSettings.GetAuditLog(); path != "" {
		logger, err := audit.NewFileLogger(path, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			a.audit = logger
			a.closers = append(a.closers, logger)
		}
	}

	a.engine, err = desc.NewEngine(command.Options{
		Backend: backend,
		Out:     os.Stdout,
		Warner:  command.WarnerFunc(printWarning),
		Audit:   a.audit,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading command descriptions: %w", err)
	}
	return a, nil
}

func openBackend(ctx context.Context, a *app) (store.Backend, error) {
	kind := backendKind
	if kind == "" {
		kind = userSettings.GetBackend()
	}

	switch kind {
	case settings.BackendREST:
		cfg := store.RESTConfig{
			Controller: userSettings.GetController(),
			CacheTTL:   userSettings.GetCacheTTL(),
		}
		if controller != "" {
			cfg.Controller = controller
		}
		if recordFile != "" {
			f, err := os.OpenFile(recordFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("opening record file: %w", err)
			}
			a.closers = append(a.closers, f)
			cfg.Recorder = f
		}
		rb := store.NewRESTBackend(cfg)
		a.closers = append(a.closers, rb)
		util.WithBackend(kind, cfg.Controller).Debug("using REST backend")
		return rb, nil

	case settings.BackendRedis:
		addr := userSettings.GetRedisAddr()
		if redisAddr != "" {
			addr = redisAddr
		}
		db := userSettings.RedisDB
		if redisDB >= 0 {
			db = redisDB
		}
		rb := store.NewRedisBackend(addr, db)
		if err := rb.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
		}
		a.closers = append(a.closers, rb)
		util.WithBackend(kind, addr).Debug("using redis backend")
		return rb, nil

	case settings.BackendMemory:
		util.WithBackend(kind, "").Debug("using in-process backend")
		return store.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown backend %q (valid: %s, %s, %s)",
		kind, settings.BackendREST, settings.BackendRedis, settings.BackendMemory)
}

// printWarning is the session's warning channel.
func printWarning(msg string) {
	fmt.Fprintln(os.Stderr, cli.Yellow("Warning: ")+msg)
}

// printError reports a failed line and keeps REST and internal failures
// in the log as well.
func printError(w io.Writer, err error) {
	if ce, ok := util.AsCommandError(err); ok {
		switch ce.Kind {
		case util.KindRest, util.KindInternal:
			util.Errorf("%v", err)
		}
	}
	fmt.Fprintln(w, cli.Red("Error: ")+err.Error())
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
