package main

import "photo-critic/cmd"

func main() {
	cmd.Execute()
}
