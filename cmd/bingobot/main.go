package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the bingo game server"`
	Client  ClientCmd        `cmd:"" help:"Connect as an interactive chat client"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bingobot"),
		kong.Description("Turn-based multiplayer bingo over chat messages"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
