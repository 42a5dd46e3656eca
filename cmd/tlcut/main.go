package main

import "github.com/forPelevin/tlcut/internal/cli"

func main() {
	cli.Main()
}
