// main.go
//
// Minimal entry point: loads an optional .env file, then delegates CLI handling to
// the Cobra root command in cmd/root.go

package main

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/cmd"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found (using environment variables)")
	}
	cmd.Execute()
}
