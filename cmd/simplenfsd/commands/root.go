// Package commands implements the simplenfsd CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "simplenfsd",
	Short: "simplenfsd - userspace NFSv2/v3/v4 server",
	Long: `simplenfsd is a userspace NFS server implementing the ONC RPC,
Portmapper, Mount, and NFSv2/v3/v4 protocols over TCP and UDP.

Use "simplenfsd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: built-in defaults + NFSD_* env)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error to stderr and exits with code 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}

// InvalidArgsError marks a failure as an invalid-argument condition
// (exit code 2), as distinct from a runtime initialization
// failure (exit code 1).
type InvalidArgsError struct {
	Err error
}

func (e *InvalidArgsError) Error() string { return e.Err.Error() }
func (e *InvalidArgsError) Unwrap() error { return e.Err }
