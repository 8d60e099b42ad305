package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip latency to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		c, err := newConnectedClient(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		for i := 0; i < pingCount; i++ {
			latency, err := c.Ping(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("reply from %s: time=%s\n", cfg.BaseURL, latency.Round(time.Microsecond))
			if i < pingCount-1 {
				time.Sleep(time.Second)
			}
		}
		return nil
	},
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 3, "number of pings to send")
}
