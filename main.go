package main

import "github.com/fils99/bipedal-locomotion-framework/cmd"

func main() {
	cmd.Execute()
}
