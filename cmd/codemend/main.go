package main

import "github.com/codemend/codemend/internal/cli"

func main() {
	cli.Execute()
}
