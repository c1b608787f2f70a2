package main

import "github.com/syy-ex/hair-makeover/internal/cli"

func main() {
	cli.Execute()
}
