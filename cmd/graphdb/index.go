package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create or drop a property index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create <label> <key>",
	Short: "Declare a B-tree property index on (label, key)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.CreateIndex(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("index created on :%s(%s)", args[0], args[1])))
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop <label> <key>",
	Short: "Remove a declared property index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		dropped, err := e.DropIndex(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		if !dropped {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("no index on :%s(%s)", args[0], args[1])))
			return nil
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("index dropped on :%s(%s)", args[0], args[1])))
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexDropCmd)
}
