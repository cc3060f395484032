// Command fleet is the terminal console for checkpoint-driven skill jobs.
package main

import "github.com/skillfleet/fleet/internal/cli"

func main() {
	cli.Execute()
}
