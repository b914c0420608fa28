package main

import (
	"github.com/whatspy/whatspy/cmd"
)

func main() {
	cmd.Execute()
}
