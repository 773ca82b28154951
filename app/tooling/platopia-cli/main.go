package main

import (
	"github.com/platopia-network/platopia/app/tooling/platopia-cli/cmd"
)

func main() {
	cmd.Execute()
}
