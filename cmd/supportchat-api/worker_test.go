package main

import (
	"testing"
	"time"

	"github.com/PabloGalante/supportchat/internal/config"
)

func TestWorkerOptionsFollowModelTimeout(t *testing.T) {
	cfg := &config.Config{NATSSubjectPrefix: "acme", LLMTimeout: 90 * time.Second}

	opts := workerOptions(cfg)
	if opts.Prefix != "acme" {
		t.Fatalf("prefix = %q", opts.Prefix)
	}
	if opts.Timeout <= cfg.LLMTimeout {
		t.Fatalf("worker timeout %s must exceed model timeout %s", opts.Timeout, cfg.LLMTimeout)
	}
}
