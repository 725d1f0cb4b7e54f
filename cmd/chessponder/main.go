// Package main provides the chessponder command, a chess engine that keeps
// thinking while its opponent is on the move.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
