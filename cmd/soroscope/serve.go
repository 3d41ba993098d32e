package main

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/fortiblox/soroscope/pkg/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr        string
		grpcAddr    string
		logRequests bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := api.DefaultConfig()
			cfg.Addr = addr
			cfg.GRPCAddr = grpcAddr
			cfg.LogRequests = logRequests
			cfg.Logger = a.logger

			var runs api.Runs
			if a.historyPath != "" {
				runs = a.history()
			}

			return api.New(cfg, runs).Start(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", defaultServeAddr(),
		"HTTP listen address (env "+envPort+" or "+envPortAlt+" sets the port)")
	flags.StringVar(&grpcAddr, "grpc-addr", "",
		"gRPC health listen address (empty disables)")
	flags.BoolVar(&logRequests, "log-requests", false,
		"Log every request at debug level")

	return cmd
}

func defaultServeAddr() string {
	return net.JoinHostPort("0.0.0.0", envOr("3000", envPort, envPortAlt))
}
