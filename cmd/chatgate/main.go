package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `help:"Path to the config file" type:"path"`
	LogLevel string `default:"info" help:"Log level (debug, info, warn, error)"`

	Serve ServeCmd `cmd:"" default:"1" help:"Run the chat gateway server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("chatgate"),
		kong.Description("Streaming chat gateway with human-in-the-loop tool permissions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
