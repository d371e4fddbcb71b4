package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tadalive/internal/listview"
	"github.com/Makepad-fr/tadalive/internal/model"
	"github.com/Makepad-fr/tadalive/internal/ui"
)

// maxTitleWidth bounds titles in list output.
const maxTitleWidth = 80

func newListCmd(app *App) *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List items",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := app.openList(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, renderList(ctrl.Items(), group))
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "Group output by pending/done")
	return cmd
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a new item (title can be multiple words)",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl, err := app.controller(ctx)
			if err != nil {
				return err
			}
			ctrl.SetDraft(strings.Join(args, " "))
			res, err := settle(ctx, ctrl, ctrl.Add())
			if err != nil {
				if errors.Is(err, errDeclined) {
					return usagef("add: empty title")
				}
				return err
			}
			app.ok("added " + res.ID)
			return nil
		},
	}
}

func newDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id|index>",
		Short: "Toggle done for an item (id, id prefix, or 1-based index from ls)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl, err := app.openList(ctx)
			if err != nil {
				return err
			}
			it, err := resolveItem(ctrl.Items(), args[0])
			if err != nil {
				return err
			}
			if _, err := settle(ctx, ctrl, ctrl.Toggle(it.ID, it.Complete)); err != nil {
				return err
			}
			if it.Complete {
				app.ok("reopened " + it.Title)
			} else {
				app.ok("completed " + it.Title)
			}
			return nil
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id|index> <title...>",
		Short: "Rename an item",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl, err := app.openList(ctx)
			if err != nil {
				return err
			}
			it, err := resolveItem(ctrl.Items(), args[0])
			if err != nil {
				return err
			}
			ctrl.BeginEdit(it.ID, it.Title)
			title := strings.Join(args[1:], " ")
			ctrl.SetEditText(title)
			if _, err := settle(ctx, ctrl, ctrl.SaveEdit()); err != nil {
				if errors.Is(err, errDeclined) {
					return usagef("edit: empty title")
				}
				return err
			}
			app.ok("renamed to " + title)
			return nil
		},
	}
}

func newWatchCmd(app *App) *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the list every time it changes, until interrupted",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl, err := app.openList(ctx)
			if err != nil {
				return err
			}
			show := func(items []model.Todo) {
				fmt.Fprintln(app.stdout, ui.Current().Muted.Render(time.Now().Format("15:04:05")))
				fmt.Fprintln(app.stdout, renderList(items, group))
			}
			show(ctrl.Items())
			err = ctrl.Watch(ctx, show)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "Group output by pending/done")
	return cmd
}

// controller builds a list controller for a signed-in user without
// subscribing.
func (a *App) controller(ctx context.Context) (*listview.Controller, error) {
	auth := a.identity()
	if _, err := a.ensureAuth(ctx, auth); err != nil {
		return nil, err
	}
	docs, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return listview.New(docs, auth,
		listview.WithCollection(a.cfg.Collection),
		listview.WithLogger(a.logger)), nil
}

// openList is controller plus an active live query with the first
// snapshot applied. The subscription is released with the app.
func (a *App) openList(ctx context.Context) (*listview.Controller, error) {
	ctrl, err := a.controller(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Activate(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closerFunc(ctrl.Deactivate))

	select {
	case s, ok := <-ctrl.Snapshots():
		if !ok {
			return nil, errors.New("live query closed before the first snapshot")
		}
		ctrl.ApplySnapshot(s)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return ctrl, nil
}

var errDeclined = errors.New("declined")

// settle runs op inline and folds the result back into ctrl.
func settle(ctx context.Context, ctrl *listview.Controller, op listview.Op) (listview.Result, error) {
	res, ran := op.Run(ctx)
	if !ran {
		return res, errDeclined
	}
	ctrl.Settle(res)
	return res, ctrl.LastError()
}

// resolveItem finds an item by 1-based index, exact id or unique id prefix.
func resolveItem(items []model.Todo, ref string) (model.Todo, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(items) {
		return items[n-1], nil
	}
	var match []model.Todo
	for _, it := range items {
		if it.ID == ref {
			return it, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			match = append(match, it)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return model.Todo{}, usagef("no item %q (have %d; run `todo ls` to see ids)", ref, len(items))
	}
	return model.Todo{}, usagef("%q matches %d items; use more of the id", ref, len(match))
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// -------------- rendering helpers --------------

func renderList(items []model.Todo, group bool) string {
	t := ui.Current()
	d, p := model.Stats(items)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(items),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, t.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")

	if group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items, 1)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todo add Buy milk`"))
	return ui.Panel(lines)
}

// flatLines renders items numbered from start.
func flatLines(items []model.Todo, start int) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{t.Muted.Render("no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		idx := fmt.Sprintf("%2d.", start+i)
		box, style := t.BoxUnchecked, t.Muted
		if it.Complete {
			box, style = t.BoxChecked, t.Success
		}
		out = append(out, fmt.Sprintf("%s %s %s %s",
			t.Muted.Render(idx), style.Render(box),
			ui.Truncate(it.Title, maxTitleWidth), t.Muted.Render(shortID(it.ID))))
	}
	return out
}

// groupLines keeps the ls numbering so indexes still work with done/edit.
func groupLines(items []model.Todo) []string {
	t := ui.Current()
	var pend, done []string
	for i, it := range items {
		line := flatLines([]model.Todo{it}, i+1)
		if it.Complete {
			done = append(done, line...)
		} else {
			pend = append(pend, line...)
		}
	}
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, pend...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, done...)
	}
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
