package main

import "f0oster/adexpiry/commands"

func main() {
	commands.Execute()
}
