package main

import (
	"os"

	"github.com/pfrederiksen/talkwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
