package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/controllers"
	"github.com/ironfathom/stationctl/internal/hardware"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/pipeline"
	"github.com/ironfathom/stationctl/internal/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bring up the station and run until shutdown",
	RunE:  runServe,
}

// controlCyclePeriod is the gimbal/weapon/camera controller tick rate,
// matching PLC42's 100ms poll cadence.
const controlCyclePeriod = 100 * time.Millisecond

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.New()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading station config: %w", err)
	}
	if !cmd.Flags().Changed("log-level") {
		logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	}
	logger.SetNoColor(noColor || cfg.NoColor)

	bus := state.NewBus()
	model := state.NewModel(bus, log)

	if !model.LoadZonesFromFile(cfg.ZoneFilePath) {
		log.Warnf("no existing zone file at %q, starting with an empty zone set", cfg.ZoneFilePath)
	}

	mgr := hardware.NewManager(cfg, model, log)
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("starting hardware manager: %w", err)
	}
	defer mgr.Shutdown()

	gimbalCtl := controllers.NewGimbalController(model, mgr.PLC42, mgr.LRF, cfg.Gimbal, log)
	weaponCtl := controllers.NewWeaponController(model, mgr.Actuator, mgr.PLC42, mgr.LRF, cfg.Ballistics, log)
	cameraCtl := controllers.NewCameraController(model, mgr.DayCamera, mgr.NightCamera, log)
	zoneDefCtl := controllers.NewZoneDefinitionController(model)
	appCtl := controllers.NewApplicationController(model, zoneDefCtl, log)
	joystickCtl := controllers.NewJoystickController(model, appCtl, func(pressed bool) {
		if pressed {
			weaponCtl.Fire()
		} else {
			weaponCtl.CeaseFire()
		}
	})
	mgr.Joystick.SetButtonHandler(joystickCtl.OnButton)
	mgr.Joystick.SetHatHandler(joystickCtl.OnHat)
	mgr.Joystick.SetZoomAxisHandler(cameraCtl.OnZoomAxis)
	mgr.Joystick.SetFocusAxisHandler(cameraCtl.OnFocusAxis)

	dayPipeline, err := pipeline.NewCameraPipeline(true, cfg.DayPipeline.CaptureDeviceIndex, pipeline.CropInsets{}, cfg.DayPipeline.DetectorModelPath, model, mgr.LRF, log)
	if err != nil {
		log.Warnf("day camera pipeline unavailable: %v", err)
	}
	nightPipeline, err := pipeline.NewCameraPipeline(false, cfg.NightPipeline.CaptureDeviceIndex, pipeline.CropInsets{}, cfg.NightPipeline.DetectorModelPath, model, mgr.LRF, log)
	if err != nil {
		log.Warnf("night camera pipeline unavailable: %v", err)
	}
	if dayPipeline != nil {
		go dayPipeline.Run()
		go drainFrames(dayPipeline)
		defer dayPipeline.Stop()
	}
	if nightPipeline != nil {
		go nightPipeline.Run()
		go drainFrames(nightPipeline)
		defer nightPipeline.Stop()
	}

	stop := make(chan struct{})
	go controlLoop(model, gimbalCtl, weaponCtl, cameraCtl, appCtl, stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	close(stop)

	log.Info("shutting down")
	if !model.SaveZonesToFile(cfg.ZoneFilePath) {
		log.Warnf("failed to save zone file to %q", cfg.ZoneFilePath)
	}
	return nil
}

// controlLoop drives the gimbal, weapon, and camera controllers at a
// fixed cadence until stop is closed. It also diffs the panel's raw
// menu_up/menu_down/menu_val levels against their previous reading to
// feed the application controller's menu navigation, the same rising-
// edge convention CameraController uses for switch_camera.
func controlLoop(model *state.Model, gimbal *controllers.GimbalController, weapon *controllers.WeaponController, camera *controllers.CameraController, app *controllers.ApplicationController, stop <-chan struct{}) {
	ticker := time.NewTicker(controlCyclePeriod)
	defer ticker.Stop()

	var lastMenuUp, lastMenuDown, lastMenuVal bool
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := model.Snapshot()
			gimbal.Tick(controlCyclePeriod)
			weapon.Tick()
			camera.Tick(snap.Panel.SwitchCamera)

			if snap.Panel.MenuUp && !lastMenuUp {
				app.OnPanelButton(controllers.PanelUp)
			}
			if snap.Panel.MenuDown && !lastMenuDown {
				app.OnPanelButton(controllers.PanelDown)
			}
			if snap.Panel.MenuVal && !lastMenuVal {
				app.OnPanelButton(controllers.PanelMenuVal)
			}
			lastMenuUp, lastMenuDown, lastMenuVal = snap.Panel.MenuUp, snap.Panel.MenuDown, snap.Panel.MenuVal
		}
	}
}

// drainFrames consumes a pipeline's frame output so its non-blocking
// send never backs up; an OSD renderer would read this channel instead.
func drainFrames(p *pipeline.CameraPipeline) {
	for range p.Frames() {
	}
}
