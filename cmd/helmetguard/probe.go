package main

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/backend"
	"helmetguard-client/internal/location"
	"helmetguard-client/internal/profile"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the SMS backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, cfg.Backend.HealthTimeout)

			health, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend %s: %w", client.BaseURL(), err)
			}
			sms := "not connected"
			if health.SMSConnected() {
				sms = "connected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s: status=%s version=%s sms=%s\n",
				client.BaseURL(), health.Status, health.Version, sms)
			if !health.Running() {
				return fmt.Errorf("backend reported status %q", health.Status)
			}
			return nil
		},
	}
}

func newShareLocationCmd() *cobra.Command {
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "share-location",
		Short: "Send a position to every emergency contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fix := location.Fix{Lat: lat, Lng: lng, Timestamp: time.Now()}
			if err := fix.Validate(); err != nil {
				return err
			}
			profiles, err := profile.NewSource(cfg.Profile.Path)
			if err != nil {
				return err
			}

			clock := clockwork.NewRealClock()
			tracker := location.NewTracker(clock)
			tracker.Update(fix)
			outbox := alert.NewOutbox(1)

			alerter := alert.New(alert.Options{
				Clock:    clock,
				Locator:  tracker,
				Backend:  backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, cfg.Backend.HealthTimeout),
				Profiles: profiles,
				Fallback: alert.NewFallback(outbox, cfg.Alert.FallbackStagger, clock.Now),
			})
			res, err := alerter.ShareLocation(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			for _, m := range outbox.List() {
				fmt.Fprintf(out, "%s: %s\n", m.Contact, m.Link)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude in degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}
