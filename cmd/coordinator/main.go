package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/iot-node/internal/config"
	"github.com/taoyao-code/iot-node/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		_, _ = os.Stderr.WriteString("iot-coordinator: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "iot-coordinator",
		Short:         "Coordinator: node registry, config resource and value ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1) 加载配置
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}

			// 2) 初始化日志
			logger, err := logging.InitLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)

			// 3) 注册表、HTTP 接口与优雅关闭
			return bootstrap.RunCoordinator(cfg, zap.L())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default $IOT_CONFIG or ./configs/node.yaml)")
	return cmd
}
