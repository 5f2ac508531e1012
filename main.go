package main

import "github.com/mserran2/triarb/cmd"

func main() {
	cmd.Execute()
}
