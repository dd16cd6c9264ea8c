package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <cypher>",
	Short: "Run one Cypher statement and print its result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		rs, err := e.ExecuteCypher(context.Background(), strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		renderResultSet(rs)
		return nil
	},
}
