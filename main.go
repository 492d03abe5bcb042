package main

import "github.com/Tiliavir/psp/cmd"

func main() {
	cmd.Execute()
}
