package main

import "github.com/soyeahso/valet/internal/cli"

func main() {
	cli.Execute()
}
