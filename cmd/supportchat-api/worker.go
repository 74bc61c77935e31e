package main

import (
	"time"

	"github.com/PabloGalante/supportchat/internal/adapters/natsworker"
	"github.com/PabloGalante/supportchat/internal/config"
)

// requestMargin keeps transport deadlines above the model timeout so a slow
// model surfaces as TimedOut instead of a dropped request.
const requestMargin = 15 * time.Second

func workerOptions(cfg *config.Config) natsworker.Options {
	return natsworker.Options{
		Prefix:  cfg.NATSSubjectPrefix,
		Timeout: cfg.LLMTimeout + requestMargin,
	}
}
