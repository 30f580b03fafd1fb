package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Run      RunCmd           `cmd:"" help:"Play one game to completion"`
	Simulate SimulateCmd      `cmd:"" help:"Play many games in parallel and print aggregate statistics"`
	Serve    ServeCmd         `cmd:"" help:"Host games for remote agents over websocket"`
	Agent    AgentCmd         `cmd:"" help:"Run the built-in house agent against a server"`
	Replay   ReplayCmd        `cmd:"" help:"Print the timeline of an archived or exported game"`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("traitorsforbots"),
		kong.Description("Hidden-traitor game engine for bot-vs-bot play"),
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
