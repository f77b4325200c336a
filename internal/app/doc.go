// Package app wires a femloop session together: it loads the run
// configuration, resolves the solver executable, validates the model and
// builds the supervisor, solve session, journal, progress reporters and
// gradient engine on top of it. It also hosts the optional status server.
// It knows nothing about the command line; internal/cli drives it.
package app
