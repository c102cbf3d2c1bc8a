// PromptLab - rewrite prompts with Gemini from the terminal
package main

import (
	"os"

	"promptlab/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
