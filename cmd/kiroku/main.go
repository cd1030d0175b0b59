package main

import (
	"fmt"
	"os"

	"github.com/kiroku-app/kiroku/common/version"
	"github.com/kiroku-app/kiroku/internal/kiroku/app"
)

func main() {
	fmt.Printf("Kiroku Diary Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kiroku, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Kiroku: %v\n", err)
		os.Exit(1)
	}
	defer kiroku.Stop()

	if err := kiroku.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Kiroku: %v\n", err)
		os.Exit(1)
	}
}
