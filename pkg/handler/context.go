package handler

// DI for the status handlers.

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yumyai/genevalidator/pkg/pipeline"
)

// StatsSource is anything that can report the statistics of a running validation.
type StatsSource interface {
	Snapshot() pipeline.Summary
}

type StatusContext struct {
	Version  string
	Stats    StatsSource
	Registry *prometheus.Registry
}
