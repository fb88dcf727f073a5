package main

import "github.com/buildtall-systems/panelbot/internal/cli"

func main() {
	cli.Execute()
}
