package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"leadgen-engine/internal/campaign"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/task"
)

// runOnce builds an engine, runs one task to completion in the foreground
// and prints its final state.
func runOnce(cmd *cobra.Command, kind task.Kind, payload any) error {
	cfg, _, warnings, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	for _, w := range warnings {
		log.Warn("config warning", logger.String("detail", w))
	}

	eng, err := newEngine(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	id, err := eng.tasks.Submit(kind, payload)
	if err != nil {
		return err
	}
	eng.tasks.Wait()

	t, err := eng.tasks.Status(id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return err
	}
	if t.Status == task.StatusFailed {
		return fmt.Errorf("task failed: %s", t.Error)
	}
	return nil
}

func scrapeCommand() *cobra.Command {
	var req scrape.Request
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every job/country combination once and store the leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, task.KindScraping, req)
		},
	}
	cmd.Flags().StringSliceVar(&req.Jobs, "job", nil, "job title to search (repeatable)")
	cmd.Flags().StringSliceVar(&req.Countries, "country", nil, "country to search in (repeatable)")
	cmd.Flags().IntVar(&req.MaxResults, "max-results", scrape.DefaultMaxResults, "postings per combination")
	cmd.Flags().StringVar(&req.ProxyType, "proxy-type", scrape.DefaultProxyType, "apify proxy group")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("country")
	return cmd
}

func campaignCommand() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Contact every pending record once on one channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := domain.ParseChannel(channel)
			if err != nil {
				return err
			}
			kind := task.KindEmailCampaign
			if ch == domain.ChannelWhatsApp {
				kind = task.KindWhatsAppCampaign
			}
			return runOnce(cmd, kind, campaign.Request{})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "email", "email or whatsapp")
	return cmd
}
