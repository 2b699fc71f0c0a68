package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

func newPlanCmd(v *viper.Viper) *cobra.Command {
	var (
		from, to, mode string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan one trip and print its distance, carbon emissions and reward points",
		Example: `  ecoroute plan --from "MG Road, Bengaluru" --to "Indiranagar, Bengaluru" --mode bus
  ecoroute plan --from "Koramangala" --to "Whitefield" --mode cycle --store sqlite --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.deps.Planner.Plan(ctx, pipeline.Request{
				StartAddress: from,
				EndAddress:   to,
				Mode:         mode,
				SessionID:    mapview.DefaultSessionID,
			}, a.deps.Sessions.Get(mapview.DefaultSessionID))
			if err != nil {
				return noticeError(err)
			}

			out := tools.NewPlanTripOutput(mapview.DefaultSessionID, res)
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintln(w, out.Distance)
			fmt.Fprintln(w, out.CarbonEmissions)
			fmt.Fprintln(w, out.RewardPoints)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Starting address")
	cmd.Flags().StringVar(&to, "to", "", "Destination address")
	cmd.Flags().StringVar(&mode, "mode", string(trip.ModeCar), "Vehicle type: car, bus, ev, cycle")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}
