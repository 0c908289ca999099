package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/portal/internal/portal/app"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("portal", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "file of KEY=value pairs loaded into the environment")
	showVersion := flags.Bool("version", false, "print the version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("invalid arguments: %v", err)
	}

	if *showVersion {
		fmt.Println(app.BuildVersion)
		return
	}

	// The default .env is optional; an explicit --env-file must exist.
	if err := app.LoadEnvFile(*envFile, flags.Changed("env-file")); err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
