package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile <cypher>",
	Short: "Run a Cypher statement, printing its plan, timing, and plan cache stats",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		text := strings.Join(args, " ")
		plan, err := e.Explain(text)
		if err != nil {
			return err
		}
		renderPlanTree(plan)

		start := time.Now()
		rs, err := e.ExecuteCypher(context.Background(), text, nil)
		elapsed := time.Since(start)
		if err != nil {
			return err
		}
		renderResultSet(rs)

		stats := e.PlanCacheStatistics()
		fmt.Println(mutedStyle.Render(fmt.Sprintf(
			"elapsed=%s  plan-cache: %d entries, %.1f%% hit rate, %d/%d bytes",
			elapsed, stats.CachedPlans, stats.HitRate*100, stats.CurrentMemoryBytes, stats.MaxMemoryBytes,
		)))
		return nil
	},
}
