package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/baderkha/snowflake-migrate/pkg/migrate/state"
	"github.com/urfave/cli/v2"
)

func listTables(c *cli.Context) error {
	log := logger(c)
	cfg, err := loadJob(c)
	if err != nil {
		return err
	}
	src, _, err := endpoints(cfg, 1, log)
	if err != nil {
		return err
	}
	defer closeAll(log, src)
	if err := src.Connect(c.Context); err != nil {
		return err
	}
	tables, err := src.ListTables(c.Context)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

func showHistory(c *cli.Context) error {
	log := logger(c)
	history, err := state.NewSqliteGormManager(c.String("history-db"), log)
	if err != nil {
		return err
	}
	defer closeAll(log, history)

	run, err := history.GetLastRun()
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("no runs recorded")
		return nil
	}
	logs, err := history.GetTableRunLogs(run.RunID)
	if err != nil {
		return err
	}

	fmt.Printf("run %s (%s -> %s) %s, %d tables, started %s\n",
		run.RunID, run.SourceType, run.TargetType, run.Status, run.TotalTablesForThisRun, formatTime(run.CreatedAt))
	if run.ErrMsg != "" {
		fmt.Println(run.ErrMsg)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tLOAD TYPE\tSTATUS\tROWS\tPARTS\tTOOK\tERROR")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			l.TableName, l.LoadType, l.Status, l.RowWritten, l.Parts, time.Duration(l.DurationMS)*time.Millisecond, l.ErrMsg)
	}
	return w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateTime)
}
