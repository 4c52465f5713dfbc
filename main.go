// Command cascades explores and costs query plans with the cascades
// optimizer.
//
//	cascades join a,b,c,d
//	cascades optimize --catalog schema.yaml --query query.yaml
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "cascades",
	Short:         "cascades plan search",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		logrus.SetOutput(os.Stderr)
		return nil
	},
}

func addLogFlags(fs *pflag.FlagSet) {
	fs.StringVar(&logLevel, "log-level", "warning", "log level (debug, info, warning, error)")
}

func init() {
	addLogFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(joinCmd, optimizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
