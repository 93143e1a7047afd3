package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	log "pidrive/logger"
	"pidrive/pkg/config"
	"pidrive/pkg/display"
	"pidrive/pkg/lvm"
	"pidrive/pkg/state"
	"pidrive/pkg/tracer"
	"pidrive/pkg/usb"
	"pidrive/pkg/utils"
	"pidrive/pkg/vdrive"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	var (
		confPath    string
		volumeGroup string
		logLevel    string
		showVersion bool
	)
	pflag.StringVar(&confPath, "config", "", "config file path (overrides discovery)")
	pflag.StringVar(&volumeGroup, "vg", "pidrive", "LVM volume group backing the drives")
	pflag.StringVar(&logLevel, "log-level", "", "log level override")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println(Version)
		return
	}

	if confPath == "" {
		confPath = config.Discover()
	}
	cfg, err := config.Load(confPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", confPath, err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := log.Init(&cfg.Log); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	ctx := context.Background()
	if cfg.Tracing.Enabled {
		tcfg := tracer.NewConfig("pidrive")
		tcfg.Endpoint = cfg.Tracing.Endpoint
		tcfg.Insecure = cfg.Tracing.Insecure
		tp, err := tracer.NewTracerProvider(ctx, tcfg)
		if err != nil {
			log.Fatalf("failed to init tracer: %v", err)
		}
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				log.Warnf("tracer shutdown: %v", err)
			}
		}()
	}

	gadget, err := usb.DefaultGadget()
	if err != nil {
		log.Fatalf("failed to bring up usb gadget: %v", err)
	}

	volumes, err := lvm.ListVolumes(volumeGroup)
	if err != nil {
		log.Fatalf("failed to discover logical volumes: %v", err)
	}

	disp := display.NewManager()
	manager := vdrive.NewManager()
	for _, volume := range volumes {
		if !utils.IsBlockDev(volume.Path) {
			log.Warnf("volume %s path %s is not a block device, skipping", volume.Name, volume.Path)
			continue
		}
		drive, err := vdrive.NewDrive(disp, gadget, volume, cfg)
		if err != nil {
			log.Fatalf("failed to create drive %s: %v", volume.Name, err)
		}
		manager.Add(drive)
	}

	store := state.DefaultStore()
	if err := store.Load(); err != nil {
		log.Fatalf("failed to load persisted state: %v", err)
	}

	tr := otel.Tracer("pidrive")
	for _, drive := range manager.Drives() {
		_, span := tr.Start(ctx, "restore "+drive.Name())
		if err := store.Restore(drive); err != nil {
			// A drive that fails to restore stays unmounted but keeps
			// its widget, so the user can retry from the screen.
			log.WithDrive(drive.Name()).Errorf("restore failed: %v", err)
		}
		span.End()
	}
	log.Infof("pidrive %s up with %d drives", Version, len(manager.Drives()))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infof("received %s, shutting down", sig)

	participants := make([]state.Stateful, 0, len(manager.Drives()))
	for _, drive := range manager.Drives() {
		participants = append(participants, drive)
	}
	if err := store.Save(participants...); err != nil {
		log.Errorf("failed to save state: %v", err)
	}
	if err := manager.UnmountAll(); err != nil {
		log.Errorf("teardown incomplete: %v", err)
	}
	if err := gadget.Shutdown(); err != nil {
		log.Errorf("gadget shutdown: %v", err)
	}
}
