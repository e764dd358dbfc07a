package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/ironfathom/stationctl/internal/logger"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "stationctl",
	Short: "Remote controlled weapon station control software",
	Long: `stationctl drives one remote controlled weapon station: the
gimbal, weapon, day/night cameras, tracking and ballistics pipeline,
and the operator panel, all over serial and Modbus RTU peripherals.`,
	RunE: runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "station.yaml", "station configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", !term.IsTerminal(int(os.Stdout.Fd())), "disable colored log output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(zonesCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)
	viper.AutomaticEnv()
}
