package main

import "multisig-core/cmd/multisig-cli/cmd"

func main() {
	cmd.Execute()
}
