package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/config"
)

var configOpts struct {
	daemon bool
	force  bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration files",
	Long: `Show where configuration is read from, print the effective settings or
write a file with the defaults.

--daemon selects stickerlayd.toml instead of the CLI's config.toml.

Examples:
  stickerlay config path --daemon
  stickerlay config show
  stickerlay config init --daemon`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file containing the defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)

	configCmd.PersistentFlags().BoolVar(&configOpts.daemon, "daemon", false,
		"Operate on the daemon config (stickerlayd.toml)")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite an existing file")
}

// configFilePath resolves the file the config commands act on. --config
// only applies to the CLI file.
func configFilePath() (string, error) {
	if configOpts.daemon {
		return config.DaemonConfigPath()
	}
	if globalOpts.configPath != "" {
		return globalOpts.configPath, nil
	}
	if path := config.ConfigPath(); path != "" {
		return path, nil
	}
	return "", errors.New("cannot determine config directory")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	var current any = cfg
	if configOpts.daemon {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		if current, err = config.LoadDaemonConfigFile(path); err != nil {
			return err
		}
	}

	data, err := toml.Marshal(current)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configOpts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if configOpts.daemon {
		err = config.SaveDaemonConfig(path, config.DefaultDaemonConfig())
	} else {
		err = config.DefaultConfig().Save(path)
	}
	if err != nil {
		return err
	}

	logger.Info("wrote default configuration", "path", path)
	fmt.Println(path)
	return nil
}
