package main

import "github.com/Alijeyrad/freelancehub_ledger/cmd"

func main() {
	cmd.Execute()
}
