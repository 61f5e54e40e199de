package main

import "github.com/lepinkainen/bookenrich/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
