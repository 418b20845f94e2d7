// Package shardledger is the command line entry point. The node command runs ledger replicas and
// the client commands talk to a running node over its REST API.
package shardledger

import (
	"fmt"
	"os"
	"strings"

	"github.com/bsv-blockchain/shardledger/daemon"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/ordishs/gocore"
	"github.com/urfave/cli/v2"
)

// Run parses args and executes the selected command.
func Run(progname, version, commit string, args []string) error {
	gocore.SetInfo(progname, version, commit)

	return newApp(progname, version, commit).Run(args)
}

func newApp(progname, version, commit string) *cli.App {
	return &cli.App{
		Name:    progname,
		Usage:   "a sharded UTXO ledger",
		Version: version + " (" + commit + ")",
		Commands: []*cli.Command{
			nodeCommand(progname, version, commit),
			clientCommand(),
		},
	}
}

func nodeCommand(progname, version, commit string) *cli.Command {
	return &cli.Command{
		Name:      "node",
		Usage:     "run ledger replicas",
		ArgsUsage: "[server id ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "host every configured replica in this process",
			},
			&cli.StringFlag{
				Name:  "server-id",
				Usage: "server that serves the REST API, overrides SERVER_ID",
			},
		},
		Action: func(c *cli.Context) error {
			tSettings := settings.NewSettings()

			if id := c.String("server-id"); id != "" {
				tSettings.Cluster.ServerID = id
			}

			logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

			logger.Infof("STATS\n%s\nVERSION\n-------\n%s (%s)\n\n", gocore.Config().Stats(), version, commit)

			serverIDs := nodeServerIDs(tSettings, c.Bool("all"), c.Args().Slice())

			logger.Infof("[%s] hosting %s", progname, strings.Join(serverIDs, ","))

			d := daemon.New(daemon.WithLoggerFactory(func(serviceName string) ulogger.Logger {
				return ulogger.New(serviceName, ulogger.WithLevel(tSettings.LogLevel))
			}))

			if err := d.Start(logger, tSettings, serverIDs); err != nil {
				logger.Errorf("[%s] %v", progname, err)
				return err
			}

			return nil
		},
	}
}

// nodeServerIDs picks the replicas to host: every configured one with all, the named ones, or
// the configured server.
func nodeServerIDs(tSettings *settings.Settings, all bool, named []string) []string {
	if all {
		ids := make([]string, 0, len(tSettings.Cluster.Replicas))
		for _, r := range tSettings.Cluster.Replicas {
			ids = append(ids, r.ServerID)
		}

		return ids
	}

	if len(named) > 0 {
		return named
	}

	return []string{tSettings.Cluster.ServerID}
}

// Main is used by the binary; it exits non zero when the command fails.
func Main(progname, version, commit string) {
	if err := Run(progname, version, commit, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
