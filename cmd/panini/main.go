package main

import (
	"github.com/paninifs/panini/cmd/panini/cmd"
)

func main() {
	cmd.Execute()
}
