package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/prodsummary/internal/prodsummarycli"
)

func main() {
	if err := prodsummarycli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, prodsummarycli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "run with --help for the command list")
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
