package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "obiwan",
		Short: "Licel lidar measurement processing via the Single Calculus Chain",
		Long: color.CyanString(`obiwan - segment raw lidar recordings into measurements and run them
through the Single Calculus Chain`),
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "cfg", "obiwan.yaml", "configuration file for this tool")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("OBIWAN")
	viper.AutomaticEnv()
}
