// Package main is the entry point for the deposit packaging console.
package main

import "github.com/ivankomartin/deposit-console/cmd/console/cmd"

func main() {
	cmd.Execute()
}
