package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/norun9/gomarketplace/cartservice/cart"
	"github.com/norun9/gomarketplace/cartservice/config"
	"github.com/norun9/gomarketplace/cartservice/logging"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or clear the stored cart snapshot",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored cart",
			Args:  cobra.NoArgs,
			RunE:  showSnapshot,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored cart",
			Args:  cobra.NoArgs,
			RunE:  clearSnapshot,
		},
	)
	return cmd
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	storage, err := openStorage(ctx, cfg, logging.NewWithOutput(cfg.LogLevel, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer storage.Close()

	payload, ok, err := storage.GetItem(ctx, cfg.StorageKey)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "no cart stored under %q\n", cfg.StorageKey)
	}
	products, err := cart.DecodeSnapshot(payload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(products)
}

func clearSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	storage, err := openStorage(ctx, cfg, logging.NewWithOutput(cfg.LogLevel, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer storage.Close()

	if err := storage.RemoveItem(ctx, cfg.StorageKey); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed cart %q\n", cfg.StorageKey)
	return nil
}
