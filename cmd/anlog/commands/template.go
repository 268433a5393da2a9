// ABOUTME: CLI commands for meal templates: list, create from today's logs, apply
// ABOUTME: Applying a template logs its required items in one transaction

package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngan-ptn/anlog/internal/store"
)

// NewTemplateCmd creates the template command group
func NewTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage reusable meal templates",
		RunE:  runTemplateList,
	}

	save := &cobra.Command{
		Use:   "save <name>",
		Short: "Save today's logged meals as a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplateSave,
	}

	var withOptional bool
	apply := &cobra.Command{
		Use:   "apply <name>",
		Short: "Log every required item of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateApply(cmd, args[0], withOptional)
		},
	}
	apply.Flags().BoolVar(&withOptional, "with-optional", false, "Also log optional items")

	cmd.AddCommand(save, apply)
	return cmd
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user, err := resolveUser(ctx, st, cfg)
	if err != nil {
		return err
	}

	templates, err := st.ListTemplates(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No templates yet. Save one with: anlog template save <name>")
		return nil
	}
	for _, t := range templates {
		fmt.Fprintf(cmd.OutOrStdout(), "%s — %d kcal, used %d time(s)\n",
			t.Name, t.TotalKcal, t.UseCount)
	}
	return nil
}

func runTemplateSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user, err := resolveUser(ctx, st, cfg)
	if err != nil {
		return err
	}

	logs, err := st.ListLogsForDate(ctx, user.ID, time.Now().UTC().Format(store.DateLayout))
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return errors.New("nothing logged today to save")
	}
	if len(logs) > store.MaxItemsPerTemplate {
		logs = logs[:store.MaxItemsPerTemplate]
	}

	items := make([]*store.TemplateItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, &store.TemplateItem{
			FoodType:     l.FoodType,
			FoodID:       l.FoodID,
			Portion:      l.Portion,
			NameSnapshot: l.NameSnapshot,
			Kcal:         l.Kcal,
			Protein:      l.Protein,
			Fat:          l.Fat,
			Carbs:        l.Carbs,
			IsRequired:   true,
		})
	}

	tpl, err := st.CreateTemplate(ctx, user.ID, args[0], "", items)
	if errors.Is(err, store.ErrLimitReached) {
		return fmt.Errorf("template limit of %d reached", store.MaxTemplatesPerUser)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved template %s with %d item(s), %d kcal.\n",
		tpl.Name, len(tpl.Items), tpl.TotalKcal)
	return nil
}

func runTemplateApply(cmd *cobra.Command, name string, withOptional bool) error {
	ctx := cmd.Context()
	st, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user, err := resolveUser(ctx, st, cfg)
	if err != nil {
		return err
	}

	templates, err := st.ListTemplates(ctx, user.ID)
	if err != nil {
		return err
	}
	var id string
	for _, t := range templates {
		if t.Name == name || t.ID == name {
			id = t.ID
			break
		}
	}
	if id == "" {
		return fmt.Errorf("no template named %q", name)
	}

	logs, err := st.LogTemplate(ctx, user.ID, id, withOptional)
	if errors.Is(err, store.ErrLimitReached) {
		return fmt.Errorf("daily limit of %d logs reached", store.MaxLogsPerDay)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged %d item(s) from %s.\n", len(logs), name)
	return printToday(cmd, st, user.ID)
}
