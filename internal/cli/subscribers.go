package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"fii-alerts/internal/models"
)

func newSubscribersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscribers",
		Aliases: []string{"subs"},
		Short:   "Inspect subscribers and their followed funds",
	}

	cmd.AddCommand(newSubscribersListCmd(app))
	cmd.AddCommand(newSubscribersFollowsCmd(app))
	return cmd
}

func newSubscribersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all subscribers with verification state and preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			subs, err := app.Store.ListSubscribers(cmd.Context())
			if err != nil {
				output.Error("Failed to list subscribers: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(subs)
			}

			if len(subs) == 0 {
				output.Warning("No subscribers registered")
				return nil
			}

			output.Bold("%-36s %-20s %-16s %-8s %s", "ID", "NAME", "PHONE", "VERIFIED", "ALERTS")
			for _, sub := range subs {
				verified := "no"
				if sub.PhoneVerified {
					verified = "yes"
				}
				output.Printf("%-36s %-20s %-16s %-8s %s\n",
					sub.ID, sub.Name, sub.Phone, verified, prefsSummary(sub.Prefs))
			}
			return nil
		},
	}
}

func newSubscribersFollowsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "follows [subscriber-id]",
		Short: "Show followed tickers, for one subscriber or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			if len(args) == 1 {
				follows, err := app.Store.FollowedTickers(cmd.Context(), args[0])
				if err != nil {
					output.Error("Failed to load follows: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(follows)
				}
				if len(follows) == 0 {
					output.Warning("Subscriber %s follows no funds", args[0])
					return nil
				}
				for _, f := range follows {
					state := "muted"
					if f.NotificationsEnabled {
						state = "notifying"
					}
					output.Printf("%-8s %s\n", f.Ticker, state)
				}
				return nil
			}

			tickers, err := app.Store.AllFollowedTickers(cmd.Context())
			if err != nil {
				output.Error("Failed to load followed tickers: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(tickers)
			}
			if len(tickers) == 0 {
				output.Warning("No funds are followed with notifications enabled")
				return nil
			}
			output.Println(strings.Join(tickers, " "))
			return nil
		},
	}
}

func prefsSummary(p models.AlertPrefs) string {
	var on []string
	if p.Fnet {
		on = append(on, "fnet")
	}
	if p.Price {
		on = append(on, "price")
	}
	if p.Dividend {
		on = append(on, "dividend")
	}
	if p.Bitcoin {
		on = append(on, "btc")
	}
	if len(on) == 0 {
		return "-"
	}
	return strings.Join(on, ",")
}
