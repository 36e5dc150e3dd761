package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"car_scrooper/config"
	"car_scrooper/logging"
	"car_scrooper/models"
)

const commandPollInterval = 2 * time.Second

// Runner is what the scheduler drives; the scraper orchestrator in practice.
type Runner interface {
	RunAll(ctx context.Context) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

// CommandQueue is the sqlite command table.
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

type Scheduler struct {
	cfg      *config.SchedulerConfig
	runner   Runner
	commands CommandQueue
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg *config.SchedulerConfig, runner Runner, commands CommandQueue) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		commands: commands,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

// Start schedules crawls and begins polling commands. It returns at once;
// Stop or cancelling ctx ends the background work.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		logging.Infof("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runScheduled(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		logging.Infof("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		logging.Infof("No schedule configured, daemon will only respond to commands")
	}

	if s.commands != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.pollCommands(ctx)
		}()
	}
	return nil
}

// Stop halts scheduling and waits for a crawl in progress to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if err := s.runner.RunAll(ctx); err != nil {
		logging.Errorf("Scheduled run error: %v", err)
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processCommands handles pending commands oldest first. A failed command is
// still marked processed.
func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		logging.Errorf("Error getting commands: %v", err)
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		logging.Infof("Processing command: %s", cmd.Command)
		if err := s.runner.HandleCommand(ctx, cmd); err != nil {
			logging.Errorf("Command %d (%s) error: %v", cmd.ID, cmd.Command, err)
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			logging.Errorf("Error marking command processed: %v", err)
		}
	}
}
