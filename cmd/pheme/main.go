package main

import (
	"os"

	"pheme/cmd/handlers"
	"pheme/internal/logger"
)

func main() {
	logger.Init()
	if err := handlers.Execute(); err != nil {
		os.Exit(1)
	}
}
