package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/scheduler"
	"github.com/pricewatch/pricewatch/internal/store/postgres"
)

func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Submit, cancel, pause, resume, or list Schedule overrides",
	}
	cmd.AddCommand(newScheduleSubmitCommand())
	cmd.AddCommand(newScheduleCancelCommand())
	cmd.AddCommand(newSchedulePauseCommand())
	cmd.AddCommand(newScheduleResumeCommand())
	cmd.AddCommand(newScheduleListDueCommand())
	return cmd
}

func newScheduleSubmitCommand() *cobra.Command {
	var productID, storeDomain, cronExpr string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new Schedule override bound to a product or a store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (productID == "") == (storeDomain == "") {
				return fmt.Errorf("schedule submit: exactly one of --product or --store is required")
			}
			if err := scheduler.ValidateCronExpression(cronExpr); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, cleanup, err := connectPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			sc := domain.Schedule{
				ID:             uuid.NewString(),
				CronExpression: cronExpr,
				Active:         true,
			}
			if productID != "" {
				sc.ProductID = &productID
			}
			if storeDomain != "" {
				sc.StoreDomain = &storeDomain
			}

			store := postgres.NewScheduleStore(pool)
			out, err := store.Create(cmd.Context(), sc)
			if err != nil {
				return fmt.Errorf("schedule submit: %w", err)
			}
			fmt.Printf("created schedule %s (cron=%q active=%t)\n", out.ID, out.CronExpression, out.Active)
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "product ID to bind this schedule to")
	cmd.Flags().StringVar(&storeDomain, "store", "", "store domain to bind this schedule to")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "five-field cron expression, at most once per day")
	cmd.MarkFlagRequired("cron")
	return cmd
}

func newScheduleCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <schedule-id>",
		Short: "Soft-delete a Schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, cleanup, err := connectPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := postgres.NewScheduleStore(pool).SoftDelete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("schedule cancel: %w", err)
			}
			fmt.Printf("cancelled schedule %s\n", args[0])
			return nil
		},
	}
}

func newSchedulePauseCommand() *cobra.Command {
	return setScheduleActiveCommand("pause", false)
}

func newScheduleResumeCommand() *cobra.Command {
	return setScheduleActiveCommand("resume", true)
}

func setScheduleActiveCommand(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <schedule-id>",
		Short: fmt.Sprintf("%s a Schedule without deleting it", capitalize(use)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, cleanup, err := connectPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			store := postgres.NewScheduleStore(pool)
			sc, err := store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			sc.Active = active
			if err := store.Update(cmd.Context(), sc); err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			fmt.Printf("%sd schedule %s\n", use, args[0])
			return nil
		},
	}
}

func newScheduleListDueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-due",
		Short: "List every Schedule whose next firing is now or in the past",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, cleanup, err := connectPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			due, err := postgres.NewScheduleStore(pool).ListDue(cmd.Context(), time.Now().UTC())
			if err != nil {
				return fmt.Errorf("schedule list-due: %w", err)
			}
			if len(due) == 0 {
				fmt.Println("no schedules due")
				return nil
			}
			for _, sc := range due {
				target := "system default"
				switch {
				case sc.ProductID != nil:
					target = "product " + *sc.ProductID
				case sc.StoreDomain != nil:
					target = "store " + *sc.StoreDomain
				}
				fmt.Printf("%s  %-12s  cron=%q\n", sc.ID, target, sc.CronExpression)
			}
			return nil
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
