package main

import (
	"github.com/spf13/cobra"

	"github.com/jronak/cgimap-go/internal/apidb"
	"github.com/jronak/cgimap-go/internal/config"
	"github.com/jronak/cgimap-go/internal/logging"
)

var (
	configPath string
	debugFlag  bool

	factory *apidb.Factory
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cgimap-query",
	Short: "Manually exercise the cgimap-go selection engine",
	Long: `cgimap-query opens a selection factory against the configured
database and runs selection/emission operations from the command line.

It exists to exercise internal/apidb end to end without the CGI/FastCGI
HTTP layer spec.md places out of scope.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log = logging.New("cgimap-query: ", debugFlag)
		factory, err = apidb.NewFactory(cmd.Context(), opts, log)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if factory == nil {
			return nil
		}
		return factory.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a cgimap-go config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(bboxCmd)
	rootCmd.AddCommand(changesetCmd)
}
