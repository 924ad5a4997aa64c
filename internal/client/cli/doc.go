// Package cli implements the wayne command-line client.
//
// Without a subcommand the binary starts an interactive REPL that keeps the
// session tokens in memory for its lifetime:
//
//	register, login, refresh, logout, passwd
//	envelope [show | put <file> | rotate <file>]
//	bucket [create | show]
//	help, exit
//
// The health and version subcommands run once and exit.
package cli
