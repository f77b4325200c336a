// Package config defines the format-agnostic configuration model of a
// femloop session: how to launch the solver, which model to copy into the
// run directory, the input parameters and the optional journal, status and
// progress surfaces. It also defines the Loader interface implemented by
// the HCL adapter, and the ConfigurationError type shared by every component
// that rejects bad configuration.
//
// The `config.Model` is the single source of truth for the `app` package.
// Concrete loaders live in separate packages.
package config
