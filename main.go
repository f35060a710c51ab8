package main

import cmd "github.com/Geun-Oh/cycletee/cmd/cycletee"

func main() {
	cmd.Execute()
}
