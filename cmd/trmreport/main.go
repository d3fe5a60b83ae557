package main

import "trm-report/internal/cli"

func main() {
	cli.Execute()
}
