package main

import "example.com/powermon/cmd"

func main() {
	cmd.Execute()
}
