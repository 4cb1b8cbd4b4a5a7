package main

import "vsearch/internal/cli"

func main() {
	cli.Execute()
}
