// Package output renders goexec run results for the terminal.
//
// Job results are printed as a kubectl-style table followed by a one-line
// summary and the pool's final statistics. Colors are applied only when the
// destination is a terminal and --no-color is not set.
package output
