package main

import "github.com/neoarchlinux/pkgdex/internal/cli"

func main() {
	cli.Execute()
}
