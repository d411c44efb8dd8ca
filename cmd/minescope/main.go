package main

import (
	"log"

	"github.com/minescope/minescope/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("minescope failed to start: %v", err)
	}
}
