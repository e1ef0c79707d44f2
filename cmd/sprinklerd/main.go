// Command sprinklerd runs the irrigation-control daemon: it loads a
// sprinklers file, wires the interceptor chain and job scheduler, and
// serves the HTTP adapter until signalled to shut down.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/config"
	"github.com/itskum47/sprinklerd/internal/controller"
	"github.com/itskum47/sprinklerd/internal/dispatch"
	"github.com/itskum47/sprinklerd/internal/httpapi"
	"github.com/itskum47/sprinklerd/internal/interceptor"
	"github.com/itskum47/sprinklerd/internal/observability"
	"github.com/itskum47/sprinklerd/internal/queue"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
	"github.com/itskum47/sprinklerd/internal/wsevents"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var port int
	var configFile string

	cmd := &cobra.Command{
		Use:   "sprinklerd",
		Short: "Single-node irrigation scheduling and safety daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port, configFile)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&configFile, "config-file", "sprinklerd.conf", "path to the sprinklers config file")
	return cmd
}

func run(port int, configFile string) error {
	f, err := os.Open(configFile)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	defs, err := config.ParseSprinklers(f)
	if err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("config file %s defines no sprinklers", configFile)
	}

	realClock := clock.Real{}
	loop := dispatch.New(64)
	go loop.Run()
	defer loop.Stop()

	ctrl := controller.New()
	for _, def := range defs {
		driver, err := buildDriver(def)
		if err != nil {
			return err
		}
		ctrl.AddSprinkler(def.ID, driver)
		log.Printf("sprinklerd: registered sprinkler %q (%s)", def.ID, def.Type)
	}

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	hub := wsevents.NewHub()
	go hub.Run(hubCtx)

	jobQueue := queue.New(realClock, ctrl, queue.DefaultActivationPolicy(), loop.Post, hub)

	// Registration order determines chain order: the last interceptor added
	// is the outermost. State verification is cheapest and goes innermost;
	// the runtime budget must wrap everything else so it can cancel its
	// force-off timer whenever a lower interceptor rejects the call.
	ctrl.AddInterceptor(interceptor.NewStateVerificationInterceptor())
	ctrl.AddInterceptor(interceptor.NewConcurrencyInterceptor(2))
	ctrl.AddInterceptor(interceptor.NewBudgetInterceptor(realClock, interceptor.DefaultWindows(), func(sprinklerID string) {
		loop.Post(func() {
			id := sprinkler.ID(sprinklerID)
			observability.ForcedOffs.WithLabelValues(sprinklerID).Inc()
			if err := ctrl.TurnOff(id); err != nil {
				log.Printf("sprinklerd: force-off failed for %s: %v", sprinklerID, err)
			}
			jobQueue.CancelActiveJobForSprinkler(id)
		})
	}))

	server := httpapi.New(loop, jobQueue, ctrl, realClock, hub)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("sprinklerd: listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("sprinklerd: http server failed: %v", err)
		}
	}()

	waitForShutdownSignal()
	log.Println("sprinklerd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("sprinklerd: http shutdown error: %v", err)
	}

	loop.Call(func() {
		for _, active := range jobQueue.ListActiveJobs() {
			id := sprinkler.ID(active.SprinklerID)
			if err := ctrl.TurnOff(id); err != nil {
				log.Printf("sprinklerd: shutdown turn_off failed for %s: %v", id, err)
			}
		}
	})

	return nil
}

func buildDriver(def config.SprinklerDef) (sprinkler.Driver, error) {
	switch def.Type {
	case "dummy":
		return sprinkler.NewDummyDriver(def.ID), nil
	case "gpio":
		d := sprinkler.NewGPIODriver(def.ID, def.Address, def.Inverted)
		if err := d.Export(); err != nil {
			return nil, fmt.Errorf("exporting gpio sprinkler %q: %w", def.ID, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("sprinkler %q: unknown driver type %q", def.ID, def.Type)
	}
}

func waitForShutdownSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
