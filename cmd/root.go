package cmd

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/statsinit/cmd/initialize"
	"github.com/ValentinKolb/statsinit/cmd/show"
	"github.com/ValentinKolb/statsinit/cmd/util"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "statsinit",
		Short: "initialize the statistics counters of the VPN bot",
		Long: fmt.Sprintf(`statsinit (v%s)

Creates the statistics counters (stats:total_users, stats:active_users,
stats:total_income) in the key-value store used by the VPN bot and sets
them to 0.`, Version),
		PersistentPreRunE: setupConfig,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of statsinit",
		// overrides the config setup of the root command
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("statsinit v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(initialize.InitCmd)
	RootCmd.AddCommand(show.ShowCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// setupConfig reads the configuration of the called command and initializes the loggers
func setupConfig(cmd *cobra.Command, _ []string) error {
	util.InitConfig()

	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.LoadConfigFile(viper.GetString("config")); err != nil {
		return err
	}

	conf, err := util.GetConfig()
	if err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}
	logger.GetLogger(common.LoggerCLI).Debugf("configuration:%s", conf.String())
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		if !util.IsLogged(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
