// Package main is the entry point for the vkdforge CLI.
package main

import "vkdforge.dev/pkg/vkdforge/cmd"

func main() {
	cmd.Execute()
}
