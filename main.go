package main

import "github.com/scipunch/feedwiki/cmd"

func main() {
	cmd.Execute()
}
