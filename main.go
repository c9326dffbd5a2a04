package main

import (
	"log/slog"
	"os"

	"order-system/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		slog.Error("service stopped", "error", err)
		os.Exit(1)
	}
}
