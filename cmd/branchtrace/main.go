package main

import "github.com/amirkhaki/branchtrace/cmd/branchtrace/cmd"

func main() {
	cmd.Execute()
}
