package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// runRepl is the root command's default action: an interactive shell
// reading one Cypher statement per line from stdin until EOF, `:quit`,
// or `:exit`.
func runRepl(cmd *cobra.Command) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Println(mutedStyle.Render("graphdb interactive shell — :quit to exit"))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("graphdb> ")
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ":quit" || line == ":exit" {
			return nil
		}

		rs, err := e.ExecuteCypher(context.Background(), line, nil)
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			continue
		}
		renderResultSet(rs)
	}
}
