package main

import (
	"github.com/billm/baaaht/webbridge/cmd"
)

func main() {
	cmd.Execute()
}
