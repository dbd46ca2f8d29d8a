// Command-line interface to an image-data server.
// Runs the registered plugins against a remote server and provides a local server for
// development: serve, about, help.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/janelia-flyem/omerotools/cli"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/plugins/quota"
	"github.com/janelia-flyem/omerotools/plugins/script"
	"github.com/janelia-flyem/omerotools/rpc"
	"github.com/janelia-flyem/omerotools/server"
	"github.com/janelia-flyem/omerotools/service"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to TOML configuration.
	configFile = flag.String("config", "", "")

	// Address for rpc communication.  Overrides the configuration.
	rpcAddress = flag.String("rpc", "", "")

	// Login overrides.
	userName = flag.String("user", "", "")
	password = flag.String("password", "", "")
)

const helpMessage = `
omero is a command-line interface to an image-data server

Usage: omero [options] <command> <subcommand> [args]

      -config     =string   Path to TOML configuration file.
      -rpc        =string   Address for RPC communication.
      -user       =string   Name to log in with.
      -password   =string   Password to log in with.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands that can be performed without a running server:

	about
	help
	serve

Commands sent to the server:

`

func newRegistry() *cli.Registry {
	reg := cli.NewRegistry()
	for _, register := range []func(*cli.Registry) error{quota.Register, script.Register} {
		if err := register(reg); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
	return reg
}

var registry = newRegistry()

var usage = func() {
	fmt.Print(helpMessage)
	registry.Usage(os.Stdout)
}

func loadConfig() (*ome.Config, error) {
	var c *ome.Config
	if *configFile == "" {
		c = ome.DefaultConfig()
	} else {
		var err error
		if c, err = ome.LoadConfig(*configFile); err != nil {
			return nil, err
		}
	}
	if *rpcAddress != "" {
		c.Client.RPCAddress = *rpcAddress
		c.Server.RPCAddress = *rpcAddress
	}
	if *userName != "" {
		c.Client.User = *userName
	}
	if *password != "" {
		c.Client.Password = *password
	}
	return c, nil
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	mode := ome.InfoMode
	if *runVerbose {
		mode = ome.DebugMode
	}
	logger := ome.NewLogger(&config.Logging, mode)

	command := cli.Command(flag.Args())
	err = DoCommand(command, config, logger)
	logger.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(ome.ExitCode(err))
	}
}

// DoCommand serves as a switchboard for commands, handling local ones and
// passing the rest to the plugins.
func DoCommand(cmd cli.Command, config *ome.Config, logger ome.Logger) error {
	if len(cmd) == 0 {
		return fmt.Errorf("Blank command!")
	}

	switch cmd.Name() {
	case "serve":
		return DoServe(cmd, config, logger)
	case "about":
		fmt.Printf("omero tools, server API %s, supported servers %s\n", server.APIVersion, rpc.SupportedVersions)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	c := cli.NewContext(connector(config, logger), logger)
	defer c.Close()
	return registry.Invoke(ctx, c, cmd)
}

// connector dials the configured server on first use by a plugin.
func connector(config *ome.Config, logger ome.Logger) cli.ConnectFunc {
	return func(ctx context.Context) (service.Session, error) {
		if config.Client.User == "" {
			return nil, ome.NewUsageError("no user given: set -user or [client] user")
		}
		opts := rpc.Options{
			Timeout: time.Duration(config.Client.Timeout) * time.Second,
			Logger:  logger,
		}
		sess, err := rpc.Dial(ctx, config.Client.RPCAddress, config.Client.User, config.Client.Password, opts)
		if err != nil {
			if errors.Is(err, ome.ErrBadCredentials) {
				return nil, &ome.UsageError{Code: 1, Msg: err.Error()}
			}
			return nil, err
		}
		return sess, nil
	}
}

// signalContext returns a context canceled on ctrl+c and other interrupts.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// DoServe opens a local server and exposes it over rpc until interrupted.
func DoServe(cmd cli.Command, config *ome.Config, logger ome.Logger) error {
	if path := cmd.Argument(1); path != "" {
		config.Server.DataPath = path
	}
	svc, err := server.Open(context.Background(), &config.Server, logger)
	if err != nil {
		return err
	}
	srv := rpc.NewServer(svc, logger)
	if err := srv.Start(config.Server.RPCAddress); err != nil {
		svc.Close()
		return err
	}
	logger.Infof("Serving API %s on %s\n", svc.Version(), config.Server.RPCAddress)

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	stopSig := make(chan os.Signal, 1)
	signal.Notify(stopSig, os.Interrupt, syscall.SIGTERM)
	sig := <-stopSig
	logger.Infof("Stop signal captured: %q.  Shutting down...\n", sig)
	srv.Stop()
	return svc.Close()
}
