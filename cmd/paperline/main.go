// Package main is the entry point of the paperline ingestion CLI.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	app "github.com/kart-io/paperline/internal/ingest"
)

func main() {
	app.NewApp().Run()
}
