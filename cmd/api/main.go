package main

import "github.com/nowhats-br/chatvendas-followup/services/api/cli"

func main() {
	cli.Execute()
}
