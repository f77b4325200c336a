// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model prepares the user's solver model for a run.
//
// # Why filter the model?
//
// The driver's input values must enter the model exactly once, through the
// parameter file the monitor script reads before it includes the model. If
// the model script re-declared one of those parameters, the model's own
// value would silently shadow the driver's and a gradient would be computed
// against a constant. Some directives are equally harmful inside a driven
// run: clearing the database mid-run, ending input early, exiting the
// solver or blocking on an interactive prompt would all desynchronize the
// control-file handshake.
//
// # How it works
//
// Every file of the model is copied into the run directory. Binary files
// are copied byte for byte. Text files go through a line Filter that turns
// offending lines into comments rather than deleting them, so line numbers
// in solver diagnostics still point at the user's source. Only the part of
// a line before the comment character `!` is considered.
//
// Finally a launcher file is written that includes the main script by name,
// so the solver's job name never depends on the script's file name.
package model
