package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NERVsystems/ecoroute/pkg/detector"
	"github.com/NERVsystems/ecoroute/pkg/tools"
)

func newDetectCmd(v *viper.Viper) *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Predict the disease shown in a crop photo and print the treatment advice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			out, err := tools.Diagnose(cmd.Context(), newDetector(cfg, logger), detector.Image{
				Name: filepath.Base(args[0]),
				Data: data,
			})
			if err != nil {
				return noticeError(err)
			}

			w := cmd.OutOrStdout()
			if asHTML {
				_, err := fmt.Fprint(w, out.HTML)
				return err
			}
			fmt.Fprintf(w, "Predicted disease: %s\n", out.Label)
			fmt.Fprintf(w, "Precautions:\n  - %s\n", strings.Join(out.Advice.Precautions, "\n  - "))
			fmt.Fprintf(w, "Solution: %s\n", out.Advice.Solution)
			fmt.Fprintf(w, "Type of Pesticide: %s\n", out.Advice.PesticideType)
			fmt.Fprintf(w, "Brand Name: %s\n", out.Advice.Brand)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "Print the advice as an HTML fragment")
	return cmd
}
