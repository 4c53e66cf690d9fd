// Command cartctl drives the guest-to-account list flow against a running API.
//
//	cartctl -base http://localhost:8080/api/v1 add <productId> [qty]
//	cartctl -guest <id> set <productId> <qty>
//	cartctl -guest <id> -wishlist rm <productId>
//	cartctl -guest <id> -email a@b.c -password secret merge
//	cartctl -guest <id> watch
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/apiclient"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/obs"
	"github.com/noah-isme/backend-parfum/internal/shopper"
)

func main() {
	base := flag.String("base", "http://localhost:8080/api/v1", "API base URL")
	guestID := flag.String("guest", os.Getenv("CARTCTL_GUEST_ID"), "visitor id; a new one is issued when empty")
	email := flag.String("email", "", "account email for merge")
	password := flag.String("password", "", "account password for merge")
	wishlist := flag.Bool("wishlist", false, "operate on the wishlist instead of the cart")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "cartctl").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(apiclient.Config{BaseURL: *base, GuestID: *guestID, Timeout: *timeout})
	kind := guest.KindCart
	if *wishlist {
		kind = guest.KindWishlist
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"show"}
	}
	if err := run(ctx, client, kind, args, *email, *password, logger); err != nil {
		logger.Fatal().Err(err).Str("command", args[0]).Msg("command failed")
	}
}

func run(ctx context.Context, c *apiclient.Client, kind guest.Kind, args []string, email, password string, logger zerolog.Logger) error {
	if _, err := c.EnsureGuest(ctx); err != nil {
		return err
	}
	logger.Info().Str("guestId", c.GuestID()).Msg("visitor")

	if args[0] == "merge" {
		if err := c.Login(ctx, email, password); err != nil {
			return err
		}
		res, err := c.Merge(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	view := shopper.NewView(c, kind)
	if err := view.Fetch(ctx, true); err != nil {
		return err
	}

	var err error
	switch args[0] {
	case "show":
	case "add", "set":
		if len(args) < 2 {
			return fmt.Errorf("%s needs a product id", args[0])
		}
		qty := 1
		if len(args) > 2 {
			if qty, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
		}
		if args[0] == "add" {
			err = view.Add(ctx, args[1], qty)
		} else {
			err = view.UpdateQuantity(ctx, args[1], qty)
		}
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("rm needs a product id")
		}
		err = view.Remove(ctx, args[1])
	case "clear":
		err = view.Clear(ctx)
	case "watch":
		view.OnChange = func(snap shopper.Snapshot, state shopper.State) {
			logger.Info().Str("state", state.String()).Int("count", snap.Count).Float64("total", snap.Total).Msg("list changed")
		}
		err = view.Watch(ctx, c)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}
	return printJSON(view.Snapshot())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
