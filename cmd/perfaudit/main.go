package main

import "perfaudit/internal/cli"

func main() {
	cli.Execute()
}
