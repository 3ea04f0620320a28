package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"laju/internal/config"
)

// descriptorView is the redacted JSON form of a descriptor.
type descriptorView struct {
	Stage            config.Stage  `json:"stage"`
	Client           config.Client `json:"client"`
	Token            string        `json:"token,omitempty"`
	Host             string        `json:"host,omitempty"`
	Port             int           `json:"port,omitempty"`
	User             string        `json:"user,omitempty"`
	Password         string        `json:"password,omitempty"`
	Database         string        `json:"database,omitempty"`
	URL              string        `json:"url,omitempty"`
	Filename         string        `json:"filename,omitempty"`
	PoolMin          int           `json:"pool_min"`
	PoolMax          int           `json:"pool_max"`
	AcquireTimeout   string        `json:"acquire_timeout"`
	IdleTimeout      string        `json:"idle_timeout"`
	UseNullAsDefault bool          `json:"use_null_as_default"`
}

func newDescriptorView(d config.Descriptor) descriptorView {
	v := descriptorView{
		Stage:            d.Stage,
		Client:           d.Client,
		Token:            d.Token,
		Host:             d.Host,
		Port:             d.Port,
		User:             d.User,
		Database:         d.Database,
		Filename:         d.Filename,
		PoolMin:          d.Pool.Min,
		PoolMax:          d.Pool.Max,
		AcquireTimeout:   d.Pool.AcquireTimeout.String(),
		IdleTimeout:      d.Pool.IdleTimeout.String(),
		UseNullAsDefault: d.UseNullAsDefault,
	}
	if d.Password != "" {
		v.Password = "[REDACTED]"
	}
	if d.URL != "" {
		v.URL = config.RedactURL(d.URL)
	}
	return v
}

var configCmd = &cobra.Command{
	Use:   "config [stage]",
	Short: "Print the resolved database descriptor (secrets redacted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := application.Descriptor()
		if len(args) == 1 {
			d = config.Resolve(config.Stage(args[0]))
		}
		if err := d.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: descriptor is not valid: %v\n", err)
		}

		out, err := json.MarshalIndent(newDescriptorView(d), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
