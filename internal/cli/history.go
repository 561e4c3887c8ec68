// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - The history command: list saved analyses.

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/learnmate/learnmate/internal/util"
)

func runHistory(args []string) int {
	parsed := NewArgParser(args)

	store, err := openAnalysisStore()
	if err != nil {
		printError("%v", err)
		return 1
	}

	all, err := store.List()
	if err != nil {
		printError("%v", err)
		return 1
	}

	if parsed.BoolFlag("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(all); err != nil {
			printError("%v", err)
			return 1
		}
		return 0
	}

	if len(all) == 0 {
		fmt.Println("no saved analyses")
		return 0
	}

	fmt.Println(headingStyle.Render("Saved analyses"))
	for _, rec := range all {
		fmt.Printf("  %s  %s  %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			labelStyle.Render(rec.ID[:8]),
			util.Truncate(rec.TaskDescription, 60))
	}
	return 0
}
