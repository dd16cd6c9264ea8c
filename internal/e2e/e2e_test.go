// Package e2e runs the scenario scripts under tests/scripts against a
// real engine instance end-to-end, rather than unit-testing one layer.
package e2e

import (
	"testing"

	"github.com/graphdb/core/internal/scripttest"
)

func TestScenarioScripts(t *testing.T) {
	scripttest.Run(t, "../../tests/scripts")
}
