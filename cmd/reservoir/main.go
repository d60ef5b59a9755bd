// Command reservoir drives object pools from a config file, compresses data
// through pooled encoders and exposes pool metrics.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := newRootCommand().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "reservoir",
		Short: "Reservoir - generic object pools with pluggable reclamation",
		Long: `Reservoir lends out reusable items from bounded pools, keeping idle items
in a stack or a linked free chain. The CLI runs seeded workloads against
configured pools, compresses files through pooled encoders and serves
pool metrics.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reservoir v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newSimulateCommand())
	root.AddCommand(newCompressCommand())
	root.AddCommand(newServeCommand())
	return root
}

// loadConfig reads path through viper, so RESERVOIR_* variables override
// the file. Without a path the defaults are used.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.NewConfig("reservoir")
		return cfg, cfg.Validate()
	}
	return config.LoadWithViper(path)
}

func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.Logging.LoggerConfig())
}
