package main

import "github.com/kozaktomas/frontdesk/cmd"

func main() {
	cmd.Execute()
}
