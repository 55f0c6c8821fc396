package main

import "github.com/mohammed-shakir/bikeways-nearby/internal/cli"

func main() {
	cli.Execute()
}
