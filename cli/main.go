package main

import "github.com/zhaobenny/claudelytics/cli/internal/commands"

func main() {
	commands.Execute()
}
