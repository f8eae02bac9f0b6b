package main

import "github.com/jordy-ruiz/pathfinder/cmd"

func main() {
	cmd.Execute()
}
