// Command elgamal-client runs the decrypting party of the ElGamal exchange.
//
// Parameters are published to the bridge (POST /topics/elgamal_params), and the
// recovered values can be read back from GET /topics/elgamal_result.
package main

import (
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
		Use:           "elgamal-client",
		Short:         "Decrypting party of a two-party ElGamal exchange",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().String(config.KeyConfig, "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String(config.KeyLogLevel, "info", "log level")
	rootCmd.PersistentFlags().String(config.KeyLogFormat, config.FormatConsole, "log format: console or json")
	rootCmd.AddCommand(newRunCmd(v))
	return rootCmd
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the client until interrupted",
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

			client, err := node.NewClient(cfg, log)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return client.Serve(ctx, ln)
		},
	}
	fs := cmd.Flags()
	fs.Int(config.KeyRounds, 5, "number of rounds to complete")
	fs.String(config.KeyEndpoint, "http://127.0.0.1:8461", "URL of the encryption endpoint")
	fs.String(config.KeyListen, "127.0.0.1:8460", "address of the bus bridge")
	fs.Duration(config.KeyProbeTimeout, config.DefaultProbeTimeout, "bound on the endpoint availability probe")
	fs.String(config.KeyParamsTopic, "elgamal_params", "topic of the parameter events")
	fs.String(config.KeyResultTopic, "elgamal_result", "topic of the results")
	fs.Int(config.KeyBacklog, 64, "messages kept per topic")
	return cmd
}
