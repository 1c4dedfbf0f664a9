// Command elgamal-server runs the encrypting party of the ElGamal exchange.
//
// It serves the encryption endpoint and publishes its parameters to the bridge
// of an elgamal-client at a fixed interval.
package main

import (
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taurusgroup/elgamal-client/internal/config"
	"github.com/taurusgroup/elgamal-client/internal/node"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	rootCmd := &cobra.Command{
		Use:           "elgamal-server",
		Short:         "Encrypting party of a two-party ElGamal exchange",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().String(config.KeyConfig, "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String(config.KeyLogLevel, "info", "log level")
	rootCmd.PersistentFlags().String(config.KeyLogFormat, config.FormatConsole, "log format: console or json")
	rootCmd.AddCommand(newServeCmd(v))
	return rootCmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve encryption requests and publish parameters until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := cfg.Logger(cmd.ErrOrStderr())

			server, err := node.NewServer(cfg, log, rand.Reader)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.EndpointListen)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx, ln)
		},
	}
	fs := cmd.Flags()
	fs.String(config.KeyEndpointListen, "127.0.0.1:8461", "address of the encryption endpoint")
	fs.String(config.KeyBridge, "http://127.0.0.1:8460", "URL of the client bridge")
	fs.String(config.KeyParamsTopic, "elgamal_params", "topic of the parameter events")
	fs.Duration(config.KeyInterval, config.DefaultInterval, "interval between parameter publications")
	fs.Uint64(config.KeyP, 0, "prime modulus, drawn at startup if 0")
	fs.Uint64(config.KeyA, 0, "generator, used with --p")
	fs.Int(config.KeyBits, 31, "bit size of the drawn safe prime")
	return cmd
}
