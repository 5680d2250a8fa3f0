package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"timelogger/backend/internal/model"
	"timelogger/backend/internal/store"
)

var (
	groupID string
	timerID string
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the raw store node at path, or the selected time logger",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			path, err := treePath(args)
			if err != nil {
				return err
			}
			raw, err := e.store.Get(ctx, path)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), raw)
		})
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List timer groups and timers with their elapsed time",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogger(); err != nil {
			return err
		}
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			groups, err := e.timeLoggers.ReadTimerGroups(ctx, userID, loggerID)
			if err != nil {
				return err
			}
			return writeGroups(cmd.OutOrStdout(), groups, e.clock.Now())
		})
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timer, stopping the other timers of its group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommand(cmd, func(ctx context.Context, e *env) error {
			return e.timeLoggers.StartTimer(ctx, userID, loggerID, groupID, timerID)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a timer and bank its elapsed seconds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommand(cmd, func(ctx context.Context, e *env) error {
			return e.timeLoggers.StopTimer(ctx, userID, loggerID, groupID, timerID)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero a timer's banked seconds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerCommand(cmd, func(ctx context.Context, e *env) error {
			return e.timeLoggers.ResetTimer(ctx, userID, loggerID, groupID, timerID)
		})
	},
}

var editModeCmd = &cobra.Command{
	Use:       "edit-mode [on|off]",
	Short:     "Show or set the edit mode of a time logger",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogger(); err != nil {
			return err
		}
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			if len(args) == 0 {
				isEditMode, err := e.timeLoggers.ReadEditMode(ctx, userID, loggerID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), editModeLabel(isEditMode))
				return nil
			}

			value, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			return e.timeLoggers.UpdateEditMode(ctx, userID, loggerID, value)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{startCmd, stopCmd, resetCmd} {
		cmd.Flags().StringVarP(&groupID, "group", "g", "", "Timer group id")
		cmd.Flags().StringVarP(&timerID, "timer", "t", "", "Timer id")
		_ = cmd.MarkFlagRequired("group")
		_ = cmd.MarkFlagRequired("timer")
	}
	rootCmd.AddCommand(treeCmd, groupsCmd, startCmd, stopCmd, resetCmd, editModeCmd)
}

// timerCommand runs fn and prints the timer as it reads afterwards.
func timerCommand(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	if err := requireLogger(); err != nil {
		return err
	}
	return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
		if err := fn(ctx, e); err != nil {
			return err
		}
		timer, err := e.timeLoggers.ReadTimer(ctx, userID, loggerID, groupID, timerID)
		if err != nil {
			return err
		}
		if timer == nil {
			return errors.New("timer disappeared")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", timer.ID, runningLabel(timer.IsRunning), model.FormatHMS(timer.ElapsedSecAt(e.clock.Now())))
		return nil
	})
}

func requireLogger() error {
	if userID == "" || loggerID == "" {
		return errors.New("--user and --logger are required")
	}
	return nil
}

func treePath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if err := requireLogger(); err != nil {
		return "", err
	}
	return store.TimeLoggerPath(userID, loggerID)
}

func writeJSON(w io.Writer, raw json.RawMessage) error {
	if raw == nil {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func writeGroups(w io.Writer, groups []model.TimerGroup, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tTIMER\tSTATE\tELAPSED")
	for _, group := range groups {
		fmt.Fprintf(tw, "%s (%s)\t\t\t%s\n", group.Name, group.ID, model.FormatHMS(group.ElapsedSecAt(now)))
		for _, timer := range group.Timers {
			fmt.Fprintf(tw, "\t%s (%s)\t%s\t%s\n", timer.Name, timer.ID, runningLabel(timer.IsRunning), model.FormatHMS(timer.ElapsedSecAt(now)))
		}
	}
	return tw.Flush()
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func editModeLabel(isEditMode *bool) string {
	if isEditMode == nil {
		return "unset"
	}
	if *isEditMode {
		return "on"
	}
	return "off"
}

func parseSwitch(arg string) (bool, error) {
	switch arg {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	value, err := strconv.ParseBool(arg)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", arg)
	}
	return value, nil
}
