package main

import "github.com/nowhats-br/chatvendas-followup/services/scanner/cli"

func main() {
	cli.Execute()
}
