// Package cli is responsible for parsing command-line arguments, layering
// FEMLOOP_* environment variables under the flags, reading and writing YAML
// parameter files and rendering results as terminal tables. It translates
// the command line into app.Config and maps errors to exit codes.
package cli
