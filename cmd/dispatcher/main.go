package main

import "github.com/nowhats-br/chatvendas-followup/services/dispatcher/cli"

func main() {
	cli.Execute()
}
