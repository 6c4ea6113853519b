package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notify-realtime/internal/models"
	"notify-realtime/internal/notification"
)

var (
	sendUser    string
	sendType    string
	sendTitle   string
	sendMessage string
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List and manage notifications",
}

// withPoller runs fn with a poller over the stored login.
func withPoller(cmd *cobra.Command, fn func(ctx context.Context, p *notification.Poller) error) error {
	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if _, err := requireLogin(ctx, store); err != nil {
		return err
	}
	p := notification.NewPoller(newAPIClient(store), cfg.Client.PollInterval, logr)
	defer p.Stop()
	return fn(ctx, p)
}

func printSnapshot(s notification.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREAD\tTYPE\tTITLE\tCREATED")
	for _, n := range s.Notifications {
		fmt.Fprintf(w, "%d\t%t\t%s\t%s\t%s\n", n.ID, n.IsRead, n.Type, n.Title, n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	fmt.Printf("%d unread\n", s.UnreadCount)
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid notification id %q", arg)
	}
	return uint(id), nil
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch notifications once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			if err := p.FetchAll(ctx); err != nil {
				return err
			}
			printSnapshot(notification.Snapshot{Notifications: p.Notifications(), UnreadCount: p.UnreadCount()})
			return nil
		})
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll notifications until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			p.OnChange(printSnapshot)
			p.OnError(func(err error) { fmt.Fprintf(os.Stderr, "! %v\n", err) })
			p.Start(ctx)
			<-ctx.Done()
			return nil
		})
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <ID>",
	Short: "Mark one notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			return p.MarkAsRead(ctx, id)
		})
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			return p.MarkAllAsRead(ctx)
		})
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <ID>",
	Short: "Delete one notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			return p.DeleteNotification(ctx, id)
		})
	},
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			if err := p.FetchAll(ctx); err != nil {
				return err
			}
			return p.ClearAllNotifications(ctx)
		})
	},
}

var notificationsSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a notification to a user (admin token required)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPoller(cmd, func(ctx context.Context, p *notification.Poller) error {
			n, err := p.Send(ctx, models.SendNotificationRequest{
				UserID:  sendUser,
				Type:    sendType,
				Title:   sendTitle,
				Message: sendMessage,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Sent notification %d to %s\n", n.ID, n.UserID)
			return nil
		})
	},
}

func init() {
	notificationsSendCmd.Flags().StringVar(&sendUser, "user", "", "recipient user id")
	notificationsSendCmd.Flags().StringVar(&sendType, "type", "info", "notification type")
	notificationsSendCmd.Flags().StringVar(&sendTitle, "title", "", "notification title")
	notificationsSendCmd.Flags().StringVar(&sendMessage, "message", "", "notification body")
	notificationsSendCmd.MarkFlagRequired("user")
	notificationsSendCmd.MarkFlagRequired("title")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsWatchCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsDeleteCmd)
	notificationsCmd.AddCommand(notificationsClearCmd)
	notificationsCmd.AddCommand(notificationsSendCmd)
	rootCmd.AddCommand(notificationsCmd)
}
