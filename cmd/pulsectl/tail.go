package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	"github.com/pulselink/pulselink/sdk/go/client"
	"github.com/pulselink/pulselink/sdk/go/state"
)

var tailTypes []string

var tailCmd = &cobra.Command{
	Use:   "tail [channels...]",
	Short: "Subscribe to channels and print incoming envelopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		c, err := client.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err = c.Connect(ctx); err != nil {
			return err
		}
		if authToken != "" {
			if err = c.Authenticate(ctx, authToken); err != nil {
				return err
			}
		}
		if len(args) > 0 {
			if err = c.Subscribe(ctx, args...); err != nil {
				return err
			}
		}

		types := tailTypes
		if len(types) == 0 {
			types = []string{"message"}
		}

		stream := state.NewStream(c, log.New(cfg.LogLevel))
		defer stream.Close()

		g, gctx := errgroup.WithContext(ctx)
		for _, t := range types {
			envs := stream.Envelopes(protocol.EnvelopeType(t))
			g.Go(func() error {
				for {
					select {
					case env, ok := <-envs:
						if !ok {
							return nil
						}
						printEnvelope(env)
					case <-gctx.Done():
						return nil
					}
				}
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
		return g.Wait()
	},
}

func init() {
	tailCmd.Flags().StringSliceVar(&tailTypes, "type", nil, "envelope types to print (default: message)")
}

func printEnvelope(env *protocol.Envelope) {
	out, err := json.Marshal(env)
	if err != nil {
		return
	}
	fmt.Println(string(out))
}
