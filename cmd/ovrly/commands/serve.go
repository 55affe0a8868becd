package commands

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vrdesk/ovrly/internal/api"
	"github.com/vrdesk/ovrly/internal/capture"
	"github.com/vrdesk/ovrly/internal/config"
	"github.com/vrdesk/ovrly/internal/gpu"
	"github.com/vrdesk/ovrly/internal/input"
	"github.com/vrdesk/ovrly/internal/logger"
	"github.com/vrdesk/ovrly/internal/overlay"
	"github.com/vrdesk/ovrly/internal/preview"
	"github.com/vrdesk/ovrly/internal/sharedmem"
	"github.com/vrdesk/ovrly/internal/vr"
	"github.com/vrdesk/ovrly/internal/window"
)

var (
	simulate bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the overlay compositor daemon",
		Long: `Runs the overlay engine, the shared-memory slot region and the HTTP API.

With --simulate the daemon captures nothing and renders a synthetic test
card through the software device instead, which is useful for development
on machines without an X server or headset.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "use a simulated runtime and capture source")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configManager, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg := configManager.Get()

	if viper.IsSet("server_port") && viper.GetInt("server_port") != 0 {
		cfg.ServerPort = viper.GetInt("server_port")
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		cfg.LogLevel = viper.GetString("log_level")
	}

	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("serve")

	store, err := sharedmem.Create(cfg.SharedRegion)
	if err != nil {
		return fmt.Errorf("failed to create shared state region: %w", err)
	}
	defer func() {
		store.Close()
		sharedmem.Remove(cfg.SharedRegion)
	}()

	var (
		source    capture.Source
		pointer   input.Pointer
		windowMgr *window.Manager
	)
	if simulate {
		static := capture.NewStaticSource()
		static.SetFrame(1, testCard(640, 360))
		source = static
		pointer = input.NewRecorder()
		log.Info().Msg("Running with simulated capture and input")
	} else {
		source, err = capture.NewX11Source()
		if err != nil {
			return fmt.Errorf("failed to connect capture source: %w", err)
		}
		defer source.Close()

		pointer, err = input.NewX11Pointer()
		if err != nil {
			return fmt.Errorf("failed to connect pointer injector: %w", err)
		}

		windowMgr, err = window.NewManager()
		if err != nil {
			log.Warn().Err(err).Msg("Window enumeration unavailable")
			windowMgr = nil
		}
	}

	params := overlay.DefaultParams()
	params.GripThreshold = cfg.Interaction.GripThreshold
	params.HitMarginPx = cfg.Interaction.HitMarginPx
	params.DragSensitivity = cfg.Interaction.DragSensitivity
	params.MaxHeadDistance = cfg.Interaction.MaxHeadDistance
	params.MinimizedIconSize = cfg.Interaction.MinimizedIconSize

	engine := overlay.New(params, store, source, pointer)
	defer engine.Close()

	var previewStreamer *preview.Streamer
	if cfg.PreviewEnabled {
		previewStreamer = preview.NewStreamer()
		if err := previewStreamer.Start(); err != nil {
			return fmt.Errorf("failed to start preview streamer: %w", err)
		}
		defer previewStreamer.Stop()
	}

	apiServer := api.NewServer(engine, store, windowMgr, previewStreamer)
	go func() {
		if err := apiServer.Start(cfg.ServerPort); err != nil {
			log.Error().Err(err).Msg("API server error")
			os.Exit(1)
		}
	}()

	// Until a headset runtime binds the engine via Initialize, drive frames
	// from the built-in simulator so slot state, capture and the preview
	// stream stay live.
	sim := vr.NewSimulator()
	if err := engine.Initialize(sim, sim.Table(), gpu.NewSoftwareDevice()); err != nil {
		return fmt.Errorf("failed to initialize overlay engine: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go runFrameLoop(engine, previewStreamer, stop, done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info().
		Int("port", cfg.ServerPort).
		Str("region", cfg.SharedRegion).
		Msg("ovrly daemon started")

	<-sigChan
	log.Info().Msg("Shutting down")
	close(stop)
	<-done
	return nil
}

// runFrameLoop ticks the engine at 90 Hz and feeds the freshest composited
// slot to the preview streamer at a reduced rate.
func runFrameLoop(engine *overlay.Manager, previewStreamer *preview.Streamer, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := logger.WithComponent("serve")

	ticker := time.NewTicker(time.Second / 90)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := engine.Update(0.011); err != nil {
				log.Error().Err(err).Msg("Frame update failed")
				continue
			}

			frame++
			if previewStreamer == nil || !previewStreamer.IsRunning() || frame%6 != 0 {
				continue
			}
			for _, info := range engine.Slots() {
				if info.Handle == 0 {
					continue
				}
				img, err := engine.Snapshot(info.Slot)
				if err != nil {
					log.Debug().Err(err).Int("slot", info.Slot).Msg("Snapshot failed")
					break
				}
				previewStreamer.WriteFrame(img)
				break
			}
		}
	}
}

// testCard renders the synthetic frame served under --simulate.
func testCard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(x * 255 / w)
			img.Pix[i+1] = uint8(y * 255 / h)
			img.Pix[i+2] = uint8((x / 32 & 1) * 255)
			img.Pix[i+3] = 255
		}
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, h/2),
	}
	d.DrawString("ovrly simulated capture")

	return img
}
