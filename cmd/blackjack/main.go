package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"blackjack.hcl" type:"path" help:"Path to HCL configuration file"`
	Serve   ServeCmd         `cmd:"" default:"withargs" help:"Run the blackjack server"`
	Migrate MigrateCmd       `cmd:"" help:"Create the PostgreSQL schema"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjack"),
		kong.Description("Multiplayer turn-based blackjack table server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
