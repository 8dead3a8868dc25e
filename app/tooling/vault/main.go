// This program administers a vault deployment from the command line.
package main

import "github.com/ardanlabs/vaults/app/tooling/vault/cmd"

func main() {
	cmd.Execute()
}
