package main

import "github.com/vietddude/uplink/internal/cli"

func main() {
	cli.Execute()
}
