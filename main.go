package main

import "github.com/nextlevelbuilder/goclaw-memory/cmd"

func main() {
	cmd.Execute()
}
