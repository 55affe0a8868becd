package main

import "github.com/vrdesk/ovrly/cmd/ovrly/commands"

func main() {
	commands.Execute()
}
