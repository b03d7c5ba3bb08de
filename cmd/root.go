package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/bKV/cmd/kv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "bkv",
		Short: "embedded ordered key-value store",
		Long: fmt.Sprintf(`bKV (v%s)

An embedded, in-process ordered key-value store built on a
copy-on-write B+Tree with MVCC, a write-ahead journal and
atomic checkpoints.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bKV v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
