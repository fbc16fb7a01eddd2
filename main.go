// Package main is the entry point of the dgsync binary.
package main

import "dgsync/cmd"

func main() {
	cmd.Execute()
}
