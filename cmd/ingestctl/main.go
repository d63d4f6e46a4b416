package main

import "github.com/markdave123-py/docingest/cmd/ingestctl/cmd"

func main() {
	cmd.Execute()
}
