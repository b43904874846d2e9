package main

import "github.com/statictide/gitpress/cmd/gitpress/cmd"

func main() {
	cmd.Execute()
}
