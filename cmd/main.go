package main

import (
	cmd "github.com/kerbaras/mgdl/cmd/mgdl"
)

func main() {
	cmd.Execute()
}
