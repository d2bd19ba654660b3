package main

import (
	"embed"
	"io/fs"

	"budgeting-desktop/shell"
	"budgeting-desktop/sqlplugin"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed app.conf.json
var manifest []byte

// fatalMessage is the fixed exit diagnostic, the Wails-hosted form of
// "error while running tauri application"
const fatalMessage = "error while running application"

func main() {
	if err := run(shell.Default(), assets, manifest); err != nil {
		log := shell.NewLogger(false)
		log.Error().Err(err).Msg("startup failed")
		log.Fatal().Msg(fatalMessage)
	}
}

// run attaches the SQL plugin with its default configuration, loads the
// run context and blocks in the host's run loop
func run(b *shell.Builder, assets fs.FS, manifest []byte) error {
	b.Plugin(sqlplugin.NewBuilder().Build())

	ctx, err := shell.GenerateContext(assets, manifest)
	if err != nil {
		return err
	}
	return b.Run(ctx)
}
