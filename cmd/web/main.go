package main

import (
	"os"

	"f0oster/adexpiry/commands"
)

// web is shorthand for "adexpiry serve".
func main() {
	commands.ExecuteWith(append([]string{"serve"}, os.Args[1:]...))
}
