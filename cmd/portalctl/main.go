package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/patientportal/internal/portalctl"
	"github.com/dmitrijs2005/patientportal/internal/server/config"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := portalctl.NewRootCommand(portalctl.NewEnv(cfg, os.Stdout)).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
