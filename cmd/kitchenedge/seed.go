package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kitchenedge/config"
	"kitchenedge/messaging"
	"kitchenedge/orders"
	"kitchenedge/orderstore/mongostore"
	"kitchenedge/protocol"
	"kitchenedge/store"
)

// orderWriter is implemented by the backends the station owns.
type orderWriter interface {
	Insert(ctx context.Context, o *orders.Order) error
}

func newSeedCommand(root *rootOptions) *cobra.Command {
	var orderPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert an order into the local order store",
		Long: `Insert an order into the sql or mongo order store.

When messaging is configured the order is also announced on the order events
topic so that running displays pick it up without waiting for a pull.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			order, err := readOrder(cmd.InOrStdin(), orderPath)
			if err != nil {
				return err
			}
			if err := seedOrder(cmd.Context(), cfg, order); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded order %s\n", order.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&orderPath, "order", "-", "order JSON file, - for stdin")
	return cmd
}

func seedOrder(ctx context.Context, cfg *config.Config, order *orders.Order) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if order.ID == "" {
		return fmt.Errorf("order has no id")
	}
	if order.Status == "" {
		order.Status = orders.StatusReceived
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	w, closeFn, err := openWriter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := w.Insert(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if cfg.Messaging.Backend == "" || cfg.Messaging.OrderEventsTopic == "" {
		return nil
	}
	client := messaging.NewClient(&cfg.Messaging, cfg.ClientID()+"-seed")
	defer client.Close()
	if err := client.Connect(); err != nil {
		return fmt.Errorf("messaging connect: %w", err)
	}
	env, err := protocol.NewEnvelope(protocol.TypeOrderCreated,
		protocol.Address{Role: protocol.RoleStore, Station: cfg.StationID},
		protocol.Address{Role: protocol.RoleStation, Station: cfg.StationID},
		&protocol.OrderEvent{Order: order})
	if err != nil {
		return err
	}
	return client.PublishEnvelope(cfg.Messaging.OrderEventsTopic, env)
}

func openWriter(ctx context.Context, cfg *config.Config) (orderWriter, func(), error) {
	switch cfg.OrderStore.Backend {
	case "sql":
		db, err := store.Open(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return db, func() { db.Close() }, nil
	case "mongo":
		ms, err := mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return ms, func() { ms.Close(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("seed needs the sql or mongo order store, not %q", cfg.OrderStore.Backend)
}
