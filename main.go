package main

import "copilot-bridge/cmd"

func main() {
	cmd.Execute()
}
