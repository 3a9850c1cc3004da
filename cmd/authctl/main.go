package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/cli"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
)

func main() {

	ctx := context.Background()
	global, rest := cli.SplitArgs(os.Args[1:])

	cfg := config.Load(global, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	code := app.Run(ctx, rest)
	_ = app.Close()
	os.Exit(code)

}
