// Command restpose is the thin CLI entrypoint for the core: it wires a
// YAML configuration into the collection pool, task manager, and HTTP
// transport, and starts/stops them in order. Grounded on cuemby-warren's
// cmd/warren/main.go command tree (a cobra root command, persistent
// logging flags initialized via cobra.OnInitialize, subcommands doing the
// real work).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/restpose/pkg/log"
)

// Version information, set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "restpose",
	Short: "RestPose — a RESTful document indexing and search service",
	Long: `RestPose accepts JSON documents into named collections, indexes them
against a typed schema, and answers structured JSON search requests over a
staged ingest/process/index pipeline.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("restpose version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
	})
}
