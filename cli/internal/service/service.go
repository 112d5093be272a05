package service

import (
	"fmt"
	"time"

	"github.com/kardianos/service"

	"github.com/zhaobenny/claudelytics/internal/logger"
)

// Name is the installed service name
const Name = "claudelytics-refresh"

// DefaultInterval is the time between background refreshes
const DefaultInterval = time.Hour

// Program implements service.Interface for background refreshing
type Program struct {
	refresher *Refresher
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
	logger    service.Logger
}

// NewProgram creates a program that refreshes every interval
func NewProgram(r *Refresher, interval time.Duration) *Program {
	return &Program{refresher: r, interval: interval}
}

// Config describes the installed service. The service re-invokes this binary
// with "service run".
func Config(interval time.Duration) *service.Config {
	return &service.Config{
		Name:        Name,
		DisplayName: "claudelytics Refresh Service",
		Description: "Periodically snapshots Claude Code usage into the local claudelytics store",
		Arguments:   []string{"service", "run", fmt.Sprintf("--interval=%s", interval)},
	}
}

// New wraps the program in a platform service
func New(p *Program) (service.Service, error) {
	s, err := service.New(p, Config(p.interval))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// SetLogger routes refresh messages to the platform service log
func (p *Program) SetLogger(l service.Logger) {
	p.logger = l
}

func (p *Program) Start(s service.Service) error {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run()
	return nil
}

func (p *Program) Stop(s service.Service) error {
	close(p.stop)
	<-p.done
	return nil
}

func (p *Program) run() {
	defer close(p.done)

	// Refresh immediately on start
	p.tick()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stop:
			return
		}
	}
}

func (p *Program) tick() {
	out, err := p.refresher.Refresh()
	if err != nil {
		logger.Error("refresh failed", "error", err)
		if p.logger != nil {
			p.logger.Errorf("Refresh failed: %v", err)
		}
		return
	}
	if out.Skipped {
		return
	}
	logger.Info("refreshed usage snapshots", "files", out.Files, "events", out.Events, "rows", out.Rows)
	if p.logger != nil {
		p.logger.Infof("Refreshed %d snapshot rows from %d files", out.Rows, out.Files)
	}
}

// StatusText describes a service status for display
func StatusText(status service.Status, err error) string {
	if err != nil {
		return fmt.Sprintf("not installed or error (%v)", err)
	}
	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
