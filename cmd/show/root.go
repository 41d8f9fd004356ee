// Package show implements the show command of statsinit.
package show

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/statsinit/cmd/util"
	"github.com/ValentinKolb/statsinit/lib/common"
	"github.com/ValentinKolb/statsinit/lib/counters"
	"github.com/ValentinKolb/statsinit/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"io"
)

var (
	// ShowCmd prints the current value of all counters
	ShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the current value of the statistics counters",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	conf, err := util.GetConfig()
	if err != nil {
		return err
	}

	connect, err := util.GetConnector(conf)
	if err != nil {
		return err
	}

	ctx, cancel := util.RunContext(cmd.Context(), conf)
	defer cancel()

	return printCounters(ctx, cmd.OutOrStdout(), connect, counters.DefaultCounters())
}

// printCounters writes key=value for every counter in cs. A failing Close is
// logged and returned when nothing else went wrong.
func printCounters(ctx context.Context, w io.Writer, connect store.Connector, cs []counters.Counter) (err error) {
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.GetLogger(common.LoggerCLI).Errorf("close store: %v", cerr)
			if err == nil {
				err = util.Logged(cerr)
			}
		}
	}()

	values, err := counters.Read(ctx, s, cs)
	if errors.Is(err, counters.ErrCounterMissing) {
		return fmt.Errorf("%w (run statsinit init first)", err)
	} else if err != nil {
		return err
	}

	for _, c := range cs {
		fmt.Fprintf(w, "%s=%d\n", c.Key, values[c.Key])
	}
	return nil
}
