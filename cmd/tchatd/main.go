package main

import (
	"flag"

	"github.com/matheus3301/tchat/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.tchat/config.toml)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath: *configFlag,
			ConsoleLog: true,
		}),
	)

	app.Run()
}
