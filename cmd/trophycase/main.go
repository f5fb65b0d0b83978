// Command trophycase evaluates audiobook listening activity against a set of
// achievement definitions and records what each listener has unlocked.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/roach88/trophycase/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "trophycase:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
