package main

import (
	"github.com/jrepp/shmlog/cmd/shmlogctl/cmd"
)

func main() {
	cmd.Execute()
}
