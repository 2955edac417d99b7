package main

import "remarknews/cli"

func main() {
	cli.Execute()
}
