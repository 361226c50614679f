package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/annel0/voxelgate/internal/protocol"
)

// Заполняются при сборке через -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "voxelgate",
		Short:         "Сервер Minecraft " + protocol.Default().VersionName(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Без подкоманды сервер запускается как serve
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к YAML конфигурации (по умолчанию $GAME_CONFIG)")

	rootCmd.AddCommand(serveCmd(&configPath), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить игровой сервер и админку",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию сервера и протокола",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("voxelgate %s (%s)\n", version, commit)
			fmt.Printf("  Протокол:   %d (%s)\n", protocol.Default().Version(), protocol.Default().VersionName())
			fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
