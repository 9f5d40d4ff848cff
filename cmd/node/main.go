package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/iot-node/internal/config"
	"github.com/taoyao-code/iot-node/internal/identity"
	"github.com/taoyao-code/iot-node/internal/logging"
	"github.com/taoyao-code/iot-node/internal/nvstore"
	"github.com/taoyao-code/iot-node/internal/syncengine"
	"github.com/taoyao-code/iot-node/internal/wake"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = os.Stderr.WriteString("iot-node: " + err.Error() + "\n")
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	debug      bool

	cfg *cfgpkg.Config
	log *zap.Logger
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "iot-node",
		Short:         "Sensor node: identity, configuration sync and measurement upload",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgpkg.Load(g.configPath)
			if err != nil {
				return err
			}
			if g.debug {
				cfg.Logging.Level = "debug"
			}
			logger, err := logging.InitLogger(cfg.Logging)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			g.cfg, g.log = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default $IOT_CONFIG or ./configs/node.yaml)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.AddCommand(runCmd(g), onceCmd(g), identityCmd(g), storeCmd(g))
	return cmd
}

func runCmd(g *globals) *cobra.Command {
	var cycles int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run wake cycles until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.OpenNode(cmd.Context(), g.cfg, g.log)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.Run(cmd.Context(), cycles, nil, func(r wake.Report) {
				g.log.Info("wake cycle",
					zap.String("node_id", r.NodeID),
					zap.Stringer("branch", r.Branch),
					zap.Stringer("outcome", r.Outcome),
					zap.Duration("sleep", r.Sleep))
			})
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 0, "Stop after N wake cycles (0 = forever)")
	return cmd
}

func onceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single wake cycle and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.OpenNode(cmd.Context(), g.cfg, g.log)
			if err != nil {
				return err
			}
			defer rt.Close()

			r, err := rt.Cycle.Once(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "node:    %s\n", r.NodeID)
			fmt.Fprintf(out, "created: %t\n", r.Created)
			fmt.Fprintf(out, "branch:  %s\n", r.Branch)
			if r.Outcome != syncengine.NoOutcome {
				fmt.Fprintf(out, "sync:    %s\n", r.Outcome)
			}
			if r.Upload != nil {
				fmt.Fprintf(out, "upload:  %d\n", r.Upload.Status)
			}
			for tag, v := range r.Values {
				fmt.Fprintf(out, "  %s=%s\n", tag, v)
			}
			fmt.Fprintf(out, "sleep:   %s\n", r.Sleep)
			return nil
		},
	}
}

func identityCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print the node identifier, creating it on first use",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.OpenNode(cmd.Context(), g.cfg, g.log)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, _, err := rt.Identity.Bootstrap()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identity.Render(id))
			return nil
		},
	}
}

func storeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the non-volatile store",
	}
	var n int
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Hex dump of the header and stored configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.OpenNode(cmd.Context(), g.cfg, g.log)
			if err != nil {
				return err
			}
			defer rt.Close()

			l, err := nvstore.Inspect(rt.NV)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "marker=%q valid=%t length=%d\n", l.Marker[:], l.Valid, l.Length)
			s, err := nvstore.Dump(rt.NV, n)
			if err != nil {
				return err
			}
			fmt.Fprint(out, s)
			return nil
		},
	}
	dump.Flags().IntVarP(&n, "bytes", "n", 0, "Bytes to dump (0 = header plus stored config)")
	cmd.AddCommand(dump)
	return cmd
}
