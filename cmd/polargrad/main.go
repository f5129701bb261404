// Package main provides the polargrad CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "v0.1.0-dev"

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("polargrad %s\n", version)
	case "gradcheck":
		if err := runGradcheck(os.Args[2:]); err != nil {
			log.Error().Err(err).Msg("gradcheck failed")
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("polargrad - polar-vector reverse-mode differentiation")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version      Show version")
	fmt.Println("  gradcheck    Compare analytic and numeric gradients of every operation")
	fmt.Println("")
	fmt.Println("Run 'polargrad gradcheck -h' for flags.")
}
