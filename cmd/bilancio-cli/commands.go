package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"bilancio/internal/amqp"
	appcli "bilancio/internal/cli"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/period"
	"bilancio/internal/recurrence"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "bilancio-cli",
		Usage: "household finance tools",
		Commands: []*cli.Command{
			periodCommand(),
			expandCommand(),
			watchCommand(),
		},
	}
}

func periodCommand() *cli.Command {
	return &cli.Command{
		Name:  "period",
		Usage: "print the accounting period for a start day",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start-day", Value: 1, Usage: "first day of the period (1-31)"},
			&cli.StringFlag{Name: "today", Usage: "reference day, YYYY-MM-DD (default: today)"},
			&cli.IntFlag{Name: "year", Usage: "explicit period year"},
			&cli.IntFlag{Name: "month", Usage: "explicit period month (1-12), requires --year"},
		},
		Action: func(c *cli.Context) error {
			startDay := c.Int("start-day")
			if startDay < 1 || startDay > 31 {
				return core.ErrInvalidStartDay
			}
			settings := core.DefaultUserSettings()
			settings.CustomPeriodActive = startDay > 1
			settings.CustomPeriodStartDay = startDay

			var r period.Range
			if year := c.Int("year"); year != 0 {
				month := c.Int("month")
				if month < 1 || month > 12 {
					return errors.New("--month must be between 1 and 12")
				}
				r = period.ForSettings(year, time.Month(month), settings)
			} else {
				today, err := dateFlag(c, "today")
				if err != nil {
					return err
				}
				r = period.Current(today, settings)
			}

			fmt.Fprintln(c.App.Writer, r.String())
			return nil
		},
	}
}

func expandCommand() *cli.Command {
	return &cli.Command{
		Name:  "expand",
		Usage: "list the dates a recurring transaction would produce",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Required: true, Usage: "template date, YYYY-MM-DD"},
			&cli.StringFlag{Name: "frequency", Value: string(core.Monthly), Usage: "daily, weekly, monthly, bimonthly, quarterly, semiannual or annual"},
			&cli.StringFlag{Name: "end", Usage: "last possible date, YYYY-MM-DD"},
			&cli.IntSliceFlag{Name: "weekday", Usage: "ISO weekday for weekly rules (1=Monday), repeatable"},
			&cli.IntFlag{Name: "horizon", Value: recurrence.DefaultHorizonYears, Usage: "safety horizon in years"},
			&cli.IntFlag{Name: "limit", Usage: "print at most this many occurrences (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			start, err := core.ParseDate(c.String("start"))
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			rule := core.RecurrenceRule{
				Frequency:    core.Frequency(c.String("frequency")),
				StartDate:    start,
				Confirmation: core.AutoConfirm,
			}
			if v := c.String("end"); v != "" {
				end, err := core.ParseDate(v)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				rule.EndDate = &end
			}
			if days := c.IntSlice("weekday"); len(days) > 0 {
				set, err := core.NewWeekdaySet(days...)
				if err != nil {
					return err
				}
				rule.Weekdays = set
			}
			// An end before the start still prints the template alone.
			if err := rule.Validate(); err != nil && !errors.Is(err, core.ErrEndBeforeStart) {
				return err
			}

			e := recurrence.Expander{Horizon: c.Int("horizon")}
			first := recurrence.NormalizeStartDate(start, rule)
			fmt.Fprintln(c.App.Writer, first.String(), "(template)")

			limit := c.Int("limit")
			n := 0
			for d := range e.Expand(first, rule) {
				if limit > 0 && n == limit {
					break
				}
				fmt.Fprintln(c.App.Writer, d.String())
				n++
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "print transaction events from the AMQP queue until interrupted",
		Action: func(c *cli.Context) error {
			cfg := appcli.LoadAndValidateConfig()
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			logger := appcli.SetupLogger(cfg, log.ComponentCLI)

			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := appcli.SignalContext(logger)
			defer cancel()

			err = client.ConsumeTransactionEvents(ctx, func(ev *amqp.TransactionEvent) error {
				_, err := fmt.Fprintf(c.App.Writer, "%s %s id=%d scope=%s occurrences=%d\n",
					ev.Timestamp.Format(time.RFC3339), ev.Type, ev.ID, ev.Scope, ev.Occurrences)
				return err
			})
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
}

func dateFlag(c *cli.Context, name string) (core.Date, error) {
	v := c.String(name)
	if v == "" {
		return core.Today(time.Local), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

