package main

import (
	"github.com/spf13/cobra"
)

const app = "connectify"

var (
	// Used for flags.
	cfgFile string
	debug   bool
	jsonLog bool

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "connectify helps job seekers build a profile in conversation and matches them to job listings",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is connectify.yaml in current directory)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLog, "json", "j", false, "json format for logging")
}
