package main

import "github.com/nowhats-br/chatvendas-followup/services/ingest/cli"

func main() {
	cli.Execute()
}
