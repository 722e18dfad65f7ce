package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/logtap/logtap/server"
)

// These variables are populated via the Go linker.
var (
	version string
	commit  string
	branch  string
)

func init() {
	// If commit or branch are not set, make that clear.
	if commit == "" {
		commit = "unknown"
	}
	if branch == "" {
		branch = "unknown"
	}
}

func main() {
	m := NewMain()
	if err := m.Run(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program execution.
type Main struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Options represents the command line options.
type Options struct {
	ConfigPath string
	Hostname   string
	LogFile    string
	LogLevel   string
	Version    bool
}

// Run parses the config from args and runs the server until a signal
// arrives.
func (m *Main) Run(args ...string) error {
	options, err := m.parseFlags(args...)
	if err != nil {
		return err
	}

	if options.Version {
		fmt.Fprintf(m.Stdout, "logtapd version %s (git: %s %s)\n", version, branch, commit)
		return nil
	}

	config, err := m.parseConfig(options.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "parse config")
	}

	// Command line args override the config file.
	if options.Hostname != "" {
		config.Hostname = options.Hostname
	}
	if options.LogFile != "" {
		config.Logging.File = options.LogFile
	}
	if options.LogLevel != "" {
		config.Logging.Level = options.LogLevel
	}

	buildInfo := server.BuildInfo{Version: version, Commit: commit, Branch: branch}
	srv, err := server.New(config, buildInfo, zapcore.AddSync(m.Stdout), zapcore.AddSync(m.Stderr))
	if err != nil {
		return err
	}
	if err := srv.Open(); err != nil {
		return errors.Wrap(err, "open server")
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	srv.Logger.Infof("listening for signals")

	s := <-signalCh
	srv.Logger.Infof("%v received, initiating clean shutdown", s)
	return srv.Close()
}

func (m *Main) parseFlags(args ...string) (Options, error) {
	var options Options
	fs := flag.NewFlagSet("logtapd", flag.ContinueOnError)
	fs.StringVar(&options.ConfigPath, "config", "", "Path to the configuration file")
	fs.StringVar(&options.Hostname, "hostname", "", "Override the hostname from the configuration file")
	fs.StringVar(&options.LogFile, "log-file", "", "Override the logging file from the configuration file")
	fs.StringVar(&options.LogLevel, "log-level", "", "Override the logging level from the configuration file")
	fs.BoolVar(&options.Version, "version", false, "Print the version and exit")
	fs.SetOutput(m.Stderr)
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return options, nil
}

func (m *Main) parseConfig(path string) (*server.Config, error) {
	config := server.NewConfig()
	if path == "" {
		return config, nil
	}
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}
