package main

import "github.com/jsvoboda/rollcall/cmd"

func main() {
	cmd.Execute()
}
