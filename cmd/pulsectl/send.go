package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var sendParams string

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Issue a command and print the server's reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		var params map[string]any
		if sendParams != "" {
			if err = json.Unmarshal([]byte(sendParams), &params); err != nil {
				return errors.Wrap(err, "parse --params")
			}
		}

		c, err := newConnectedClient(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		reply, err := c.SendCommand(context.Background(), args[0], params)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(reply, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendParams, "params", "", "command parameters as a JSON object")
}
