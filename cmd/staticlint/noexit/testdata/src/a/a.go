package main

import (
	"log"
	"os"
	stdos "os"
)

func shutdown() {
	os.Exit(0)
}

func main() {
	defer shutdown()

	cleanup := func() {
		os.Exit(3)
	}
	_ = cleanup

	if len(os.Args) > 3 {
		log.Fatalf("too many arguments: %d", len(os.Args)) // want "avoid calling log.Fatalf in main.main"
	}
	if len(os.Args) > 2 {
		log.Fatal("unexpected argument") // want "avoid calling log.Fatal in main.main"
	}
	if len(os.Args) > 1 {
		stdos.Exit(2) // want "avoid calling os.Exit in main.main"
	}

	os.Exit(1) // want "avoid calling os.Exit in main.main"
}
