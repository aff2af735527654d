package main

import (
	"github.com/photonworks/dngscope/config"
	"github.com/photonworks/dngscope/ui"
	"github.com/photonworks/dngscope/util/log"
)

func main() {
	// Ensure only one instance of the application runs at a time.
	acquired, err := acquireLock()
	if err != nil {
		log.Fatalf("Failed to acquire single-instance lock: %v", err)
	}
	if !acquired {
		log.Printf("Another instance of %s is already running.", config.AppName)
		return
	}
	defer releaseLock()

	app := ui.GetInstance()
	if app == nil {
		log.Fatalf("Failed to initialize %s", config.AppName)
	}
	app.Run()
}
