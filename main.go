package main

import "github.com/KaramelBytes/aicfo/cmd"

func main() {
	cmd.Execute()
}
