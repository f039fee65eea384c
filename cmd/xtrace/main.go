// Command xtrace is a transparent X11 protocol tracer: it listens as a
// fake display, dials the real one, forwards every byte, and logs an
// annotated summary of every request, reply, event and error it sees,
// including extensions it learns about at runtime.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xtrace",
		Short: "Trace the X11 protocol between a client and a real display",
	}
	root.AddCommand(newRunCmd())
	return root
}
