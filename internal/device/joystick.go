package device

import (
	"runtime"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
)

const joystickAxisDeadzoneCounts = 3000

// Joystick owns the SDL2 joystick subsystem: it normalises raw axis
// counts to [-1,1] with a 3000-count deadzone, forwards hat bitmasks
// verbatim (SDL's centered=0, up=1, right=2, down=4, left=8 convention
// matches the model's OnJoystickHat contract), and resolves the
// configured device by GUID if one is set.
type Joystick struct {
	model *state.Model
	log   logger.Logger
	guid  string

	onButton func(button int, pressed bool)
	onHat    func(hat int)
	onAxis2  func(value float64)
	onAxis3  func(value float64)

	stick *sdl.Joystick
	stop  chan struct{}
}

func NewJoystick(log logger.Logger, guid string) *Joystick {
	return &Joystick{log: log.WithPrefix("device.joystick"), guid: guid, stop: make(chan struct{})}
}

func (d *Joystick) SetModel(m *state.Model) { d.model = m }

// SetButtonHandler registers the callback invoked on every button edge,
// in addition to the model's own (no-op) OnJoystickButton intake; the
// joystick controller owns button semantics, not the model directly.
func (d *Joystick) SetButtonHandler(fn func(button int, pressed bool)) { d.onButton = fn }

// SetHatHandler registers the callback invoked on every hat change, in
// addition to the model's OnJoystickHat intake.
func (d *Joystick) SetHatHandler(fn func(hat int)) { d.onHat = fn }

// SetZoomAxisHandler registers the callback for axis 2 (camera zoom),
// which the model's gimbal-only axis intake does not consume.
func (d *Joystick) SetZoomAxisHandler(fn func(value float64)) { d.onAxis2 = fn }

// SetFocusAxisHandler registers the callback for axis 3 (camera focus).
func (d *Joystick) SetFocusAxisHandler(fn func(value float64)) { d.onAxis3 = fn }

// Initialize starts the SDL event pump on a dedicated, OS-thread-locked
// goroutine (SDL's event APIs are not safe to call from arbitrary
// goroutines).
func (d *Joystick) Initialize() error {
	ready := make(chan error, 1)
	go d.run(ready)
	return <-ready
}

func (d *Joystick) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := sdl.Init(sdl.INIT_JOYSTICK); err != nil {
		ready <- err
		return
	}
	defer sdl.Quit()

	d.stick = d.openConfiguredStick()
	if d.stick != nil {
		defer d.stick.Close()
	}
	ready <- nil

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		event := sdl.PollEvent()
		if event == nil {
			sdl.Delay(10)
			continue
		}
		d.handleEvent(event)
	}
}

func (d *Joystick) openConfiguredStick() *sdl.Joystick {
	count := sdl.NumJoysticks()
	for i := 0; i < count; i++ {
		guid := sdl.JoystickGetDeviceGUID(i).String()
		if d.guid == "" || guid == d.guid {
			stick := sdl.JoystickOpen(i)
			if stick != nil {
				d.log.Infof("opened joystick %q (guid %s)", stick.Name(), guid)
				return stick
			}
		}
	}
	d.log.Warnf("no matching joystick found (guid %q)", d.guid)
	return nil
}

func (d *Joystick) handleEvent(event sdl.Event) {
	switch ev := event.(type) {
	case *sdl.JoyAxisEvent:
		d.onAxis(int(ev.Axis), ev.Value)
	case *sdl.JoyButtonEvent:
		pressed := ev.State == sdl.PRESSED
		if d.model != nil {
			d.model.OnJoystickButton(int(ev.Button), pressed)
		}
		if d.onButton != nil {
			d.onButton(int(ev.Button), pressed)
		}
	case *sdl.JoyHatEvent:
		if d.model != nil {
			d.model.OnJoystickHat(int(ev.Value))
		}
		if d.onHat != nil {
			d.onHat(int(ev.Value))
		}
	}
}

func (d *Joystick) onAxis(axis int, raw int16) {
	if raw > -joystickAxisDeadzoneCounts && raw < joystickAxisDeadzoneCounts {
		raw = 0
	}
	value := float64(raw) / 32768.0
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}

	switch {
	case axis <= 1:
		if d.model != nil {
			d.model.OnJoystickAxis(axis, value)
		}
	case axis == 2:
		if d.onAxis2 != nil {
			d.onAxis2(value)
		}
	case axis == 3:
		if d.onAxis3 != nil {
			d.onAxis3(value)
		}
	}
}

// Shutdown stops the SDL event loop.
func (d *Joystick) Shutdown() {
	close(d.stop)
}
