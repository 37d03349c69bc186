package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/streamfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Create a configuration file with default values.

The file is written to the default location ($XDG_CONFIG_HOME/streamfs/config.yaml)
unless --config specifies a different path.

Examples:
  # Create config at the default location
  streamfs init

  # Create config at a custom path
  streamfs init --config /etc/streamfs/config.yaml

  # Overwrite an existing config
  streamfs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var path string
	var err error

	if cfg := GetConfigFile(); cfg != "" {
		path = cfg
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: streamfs start")
	fmt.Printf("  3. Or specify custom config: streamfs start --config %s\n", path)
	return nil
}
