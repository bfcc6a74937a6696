package main

import "github.com/ethpandaops/validator-keymanager/cmd"

func main() {
	cmd.Execute()
}
