package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"greenbot/pkg/config"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage greenbot as a system service",
	Long: `Install and control greenbot as a system service:
- Linux: systemd
- macOS: launchd
- Windows: Windows Service Manager

The installed service runs "greenbot run" with the config file given by
--config or GREENBOT_CONFIG_FILE at install time.
Requires administrator/root privileges.

Examples:
  sudo greenbot -c /etc/greenbot/config.yaml service install
  sudo greenbot service start
  sudo greenbot service status`,
}

func init() {
	actions := []struct {
		use, short string
		fn         func() error
	}{
		{"install", "Install the system service", InstallService},
		{"uninstall", "Uninstall the system service", UninstallService},
		{"start", "Start the system service", StartService},
		{"stop", "Stop the system service", StopService},
		{"restart", "Restart the system service", RestartService},
		{"status", "Show the system service status", StatusService},
	}

	for _, a := range actions {
		fn := a.fn
		serviceCmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := fn(); err != nil {
					fmt.Fprintln(os.Stderr, "Note: managing system services requires administrator privileges.")
					return err
				}
				return nil
			},
		})
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunService()
		},
	})
}

// BotService implements service.Interface around the fx app.
type BotService struct {
	mu     sync.Mutex
	app    *fx.App
	logger service.Logger
}

// NewBotService creates a new bot service.
func NewBotService() *BotService {
	return &BotService{}
}

// Start implements service.Interface.
func (s *BotService) Start(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Starting greenbot service")
	}

	app := newApp(fx.NopLogger)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.app = app
	s.mu.Unlock()

	go s.watch(svc, app)
	return nil
}

// watch stops the service when the app shuts itself down, for example
// after a handler error with stop_on_error.
func (s *BotService) watch(svc service.Service, app *fx.App) {
	sig := <-app.Wait()
	if s.logger != nil {
		s.logger.Warningf("Bot shut down with exit code %d", sig.ExitCode)
	}
	if sig.ExitCode != 0 {
		os.Exit(sig.ExitCode)
	}
}

// Stop implements service.Interface.
func (s *BotService) Stop(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Stopping greenbot service")
	}

	s.mu.Lock()
	app := s.app
	s.app = nil
	s.mu.Unlock()

	if app == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service configuration.
func ServiceConfig() *service.Config {
	args := []string{"service", "run"}
	if path := serviceConfigPath(); path != "" {
		args = append([]string{"-c", path}, args...)
	}

	return &service.Config{
		Name:        "greenbot",
		DisplayName: "Greenbot",
		Description: "WhatsApp bot runtime for GREEN-API",
		Arguments:   args,
	}
}

func serviceConfigPath() string {
	if path := strings.TrimSpace(configPath); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv(config.ConfigPathEnv))
}

func newService() (service.Service, *BotService, error) {
	prg := NewBotService()
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return s, prg, nil
}

// InstallService installs the bot as a system service.
func InstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("installing service: %w", err)
	}

	fmt.Println("Service installed successfully!")
	fmt.Println("Use 'greenbot service start' to start the service")
	return nil
}

// UninstallService uninstalls the system service.
func UninstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("uninstalling service: %w", err)
	}

	fmt.Println("Service uninstalled successfully!")
	return nil
}

// StartService starts the system service.
func StartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	fmt.Println("Service started successfully!")
	return nil
}

// StopService stops the system service.
func StopService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		return fmt.Errorf("stopping service: %w", err)
	}

	fmt.Println("Service stopped successfully!")
	return nil
}

// RestartService restarts the system service.
func RestartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Restart(); err != nil {
		return fmt.Errorf("restarting service: %w", err)
	}

	fmt.Println("Service restarted successfully!")
	return nil
}

// StatusService prints the status of the system service.
func StatusService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}

	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("getting service status: %w", err)
	}

	fmt.Printf("Service Status: %s\n", statusName(status))
	return nil
}

func statusName(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// RunService runs the bot under the service manager.
func RunService() error {
	s, prg, err := newService()
	if err != nil {
		return err
	}

	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger

	if err := s.Run(); err != nil {
		logger.Error(err)
		return err
	}
	return nil
}
