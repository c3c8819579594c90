// Command interioai serves the InterioAI room-design API.
//
// Storage is PostgreSQL when a DSN is configured (-d / DATABASE_DSN), a JSON
// file when only a file path is given (-f / FILE_STORAGE_PATH) and process
// memory otherwise.
package main

import (
	"github.com/patric-chuzhbe/interioai/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		panic(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		panic(err)
	}
}
