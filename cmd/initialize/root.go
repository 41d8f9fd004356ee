// Package initialize implements the init command of statsinit.
package initialize

import (
	"github.com/ValentinKolb/statsinit/cmd/util"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/counters"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// InitCmd writes all counters with the value 0
	InitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the statistics counters and set them to 0",
		Long: `Connects to the key-value store, writes stats:total_users, stats:active_users
and stats:total_income with the value 0 and closes the connection.

Existing values are overwritten unless --if-absent is set.`,
		Args: cobra.NoArgs,
		RunE: run,
	}
)

func init() {
	key := "if-absent"
	InitCmd.Flags().Bool(key, false, util.WrapString("Only create counters that do not exist yet instead of resetting all of them"))

	key = "print-metrics"
	InitCmd.Flags().Bool(key, false, util.WrapString("Print the metrics of the run in Prometheus text format when done"))
}

func run(cmd *cobra.Command, _ []string) error {
	conf, err := util.GetConfig()
	if err != nil {
		return err
	}

	connect, err := util.GetConnector(conf)
	if err != nil {
		return err
	}

	in := counters.NewInitializer(connect, logger.GetLogger(common.LoggerInit))
	in.IfAbsent = conf.IfAbsent
	in.Target = conf.Target()

	ctx, cancel := util.RunContext(cmd.Context(), conf)
	defer cancel()

	_, err = in.Run(ctx)

	if viper.GetBool("print-metrics") {
		in.WriteMetrics(cmd.OutOrStdout())
	}

	// the initializer logs all errors itself
	return util.Logged(err)
}
