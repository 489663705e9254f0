package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"goldref/internal/domain"
)

// ListCommand handles the list command
type ListCommand struct {
	env *Env
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	cases, err := lc.env.selectCases()
	if err != nil {
		return err
	}

	if len(cases) == 0 {
		color.Yellow("No cases found")
		return nil
	}

	if !lc.env.Config.Flags.Baselines {
		lc.env.Formatter.PrintCaseList(cases, nil)
		return nil
	}

	store := lc.env.Baselines
	lc.env.Formatter.PrintCaseList(cases, func(c domain.Case) bool { return store.Exists(c.ID) })

	orphans, err := lc.orphans()
	if err != nil {
		return err
	}
	lc.env.Formatter.PrintOrphans(orphans)

	if lc.env.Config.Flags.Prune {
		for _, id := range orphans {
			if err := store.Remove(id); err != nil {
				return fmt.Errorf("remove baseline %s: %w", id, err)
			}
		}
		if len(orphans) > 0 {
			color.Green("Removed %d orphaned baseline(s)", len(orphans))
		}
	}
	return nil
}

// orphans returns stored baselines whose case is no longer discovered anywhere
// under the circuits path.
func (lc *ListCommand) orphans() ([]string, error) {
	stored, err := lc.env.Baselines.List()
	if err != nil {
		return nil, err
	}
	all, err := lc.env.Scanner.Scan(lc.env.Config.GetCircuitsPath())
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(all))
	for _, c := range all {
		if dir, err := lc.env.Baselines.Dir(c.ID); err == nil {
			known[dir] = struct{}{}
		}
	}
	var orphans []string
	for _, id := range stored {
		dir, err := lc.env.Baselines.Dir(id)
		if err != nil {
			continue
		}
		if _, ok := known[dir]; !ok {
			orphans = append(orphans, id)
		}
	}
	return orphans, nil
}
