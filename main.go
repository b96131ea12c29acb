package main

import "github.com/haxorport/relay-tunnel/cmd"

func main() {
	cmd.Execute()
}
