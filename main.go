package main

import "hawkdove/cmd"

func main() {
	cmd.Execute()
}
