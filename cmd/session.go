package cmd

import (
	"log/slog"
	"time"

	"github.com/meko-christian/mail-sorter/internal/config"
	"github.com/meko-christian/mail-sorter/internal/mailstore"
	"github.com/meko-christian/mail-sorter/internal/oracle"
	"github.com/meko-christian/mail-sorter/internal/sorter"
)

const imapTimeout = 60 * time.Second

func dialSession(cfg config.Config) (*mailstore.Session, error) {
	return mailstore.Dial(mailstore.Options{
		Server:   cfg.IMAP.Server,
		Port:     cfg.IMAP.Port,
		TLS:      cfg.IMAP.SSL,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		Timeout:  imapTimeout,
		Logger:   slog.Default(),
	})
}

func newOracle(cfg config.Config) (*oracle.Client, error) {
	return oracle.New(oracle.Options{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Prompt:      cfg.LLM.Prompt,
		Logger:      slog.Default(),
	})
}

func newCoordinator(cfg config.Config) (*sorter.Coordinator, error) {
	classifier, err := newOracle(cfg)
	if err != nil {
		return nil, err
	}

	dial := func() (sorter.Store, error) {
		s, err := dialSession(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return sorter.NewCoordinator(cfg, dial, classifier, slog.Default()), nil
}
