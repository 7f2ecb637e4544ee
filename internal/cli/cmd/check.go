package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaduCristea123/OBIWAN/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file without processing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Println(color.GreenString("Configuration is valid"))
		if verbose {
			fmt.Printf("  SCC endpoint:          %s\n", cfg.SCC.BaseURL)
			fmt.Printf("  Station code:          %s\n", cfg.StationCode)
			fmt.Printf("  Configurations folder: %s\n", cfg.ConfigurationsFolder)
			fmt.Printf("  NetCDF output folder:  %s\n", cfg.NetCDFOutDir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
