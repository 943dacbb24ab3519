package main

import "github.com/testforge/cardforge/internal/cli"

func main() {
	cli.Execute()
}
