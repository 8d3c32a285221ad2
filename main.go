package main

import "github.com/notargets/seisfields/cmd"

func main() {
	cmd.Execute()
}
