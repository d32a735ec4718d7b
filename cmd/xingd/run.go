package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/goxing/pkg/cloud"
	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/pipeline"
	"github.com/itohio/goxing/pkg/webhook"
)

type runOptions struct {
	*rootOptions
	device         string
	port           string
	averageSamples int
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Count crossings until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.device, "device", pipeline.DeviceSerial, "Sensor device: serial, gpio or mock")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().IntVar(&opts.averageSamples, "average-samples", -1, "Number of echoes to average (0 = disabled, overrides config)")

	return cmd
}

// loadConfig loads the config file and applies command line overrides.
func (o *runOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.port != "" {
		cfg.Serial.Port = o.port
	}
	if o.averageSamples >= 0 {
		cfg.Measurement.AverageSamples = o.averageSamples
	}
	return cfg, nil
}

// outputs holds the optional crossing consumers.
type outputs struct {
	dispatcher *webhook.Dispatcher
	reporter   *cloud.Reporter
}

// newOutputs builds the webhook dispatcher and cloud reporter. Either is nil
// when its URL is not configured.
func newOutputs(cfg *config.Config, log *debuglog.Logger) (*outputs, error) {
	var signer *cloud.Signer
	if cfg.Cloud.Secret != "" {
		s, err := cloud.NewSigner(&cfg.Cloud)
		if err != nil {
			return nil, err
		}
		signer = s
	}

	out := &outputs{}
	if cfg.Webhook.BaseURL != "" {
		out.dispatcher = webhook.NewDispatcher(cfg, webhook.NewHTTPPublisher(&cfg.Webhook, signer), log)
	} else {
		log.System("webhook base_url not set, webhooks disabled")
	}
	if cfg.Cloud.URL != "" {
		out.reporter = cloud.NewReporter(cfg, cloud.NewHTTPSender(&cfg.Cloud, signer), log)
	} else {
		log.System("cloud url not set, reports disabled")
	}
	return out, nil
}

// handle forwards a completed crossing to every enabled output.
func (o *outputs) handle(ev crossing.Event) {
	if o.dispatcher != nil {
		o.dispatcher.Enqueue(ev)
	}
	if o.reporter != nil {
		o.reporter.Add(ev)
	}
}

// run starts the output goroutines and returns a function waiting for them.
func (o *outputs) run(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	if o.dispatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.dispatcher.Run(ctx)
		}()
	}
	if o.reporter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.reporter.Run(ctx)
		}()
	}
	return wg.Wait
}

func runDaemon(ctx context.Context, opts *runOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	log, err := debuglog.New(&cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Close()

	out, err := newOutputs(cfg, log)
	if err != nil {
		return err
	}

	detector := crossing.New(cfg, log)
	detector.OnEvent(out.handle)

	device, err := pipeline.NewDevice(cfg, opts.device, log)
	if err != nil {
		return err
	}

	outCtx, cancelOutputs := context.WithCancel(context.Background())
	defer cancelOutputs()
	wait := out.run(outCtx)

	chain, err := pipeline.Start(cfg, device, detector, log)
	if err != nil {
		cancelOutputs()
		wait()
		return err
	}
	log.Human("counting crossings on %s device", opts.device)

	<-ctx.Done()
	log.Human("shutting down")

	// Drain the chain first so crossings completed during shutdown are queued.
	// The dispatcher publishes whatever is still queued once cancelled.
	if err := chain.Close(); err != nil {
		log.System("device close: %v", err)
	}
	cancelOutputs()
	wait()

	counts := detector.Counts()
	log.Human("counted %d crossings (left %d, right %d)", counts.Total(), counts.Left, counts.Right)
	return nil
}
