// Package launcher wires a configuration file into a running set of
// servo/traj/tool/task loops (spec.md §9, "Process model and lifecycle").
// Servo, tool and task each run on their own fixed-period ticker; Traj is
// clocked instead by a semaphore Servo 0 releases, per spec.md §5. All of
// it runs on a goroutine fleet bounded by a cancellable context.
package launcher

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/itohio/gomotion/config"
	"github.com/itohio/gomotion/extio"
	"github.com/itohio/gomotion/kinematics"
	"github.com/itohio/gomotion/logging"
	"github.com/itohio/gomotion/motion"
	"github.com/itohio/gomotion/servoloop"
	"github.com/itohio/gomotion/taskloop"
	"github.com/itohio/gomotion/toolloop"
	"github.com/itohio/gomotion/trajloop"
)

// Options configures Build (spec.md §6, CLI surface).
type Options struct {
	IniPath string
	LogDir  string
	Debug   bool
}

// Runtime bundles every endpoint and loop a launched controller owns, so a
// front-end (the CLI, the task server) can reach into it once Run starts.
type Runtime struct {
	Config *config.Config
	Log    zerolog.Logger

	Adapter extio.Adapter
	Kin     kinematics.Model

	ServoEndpoints []*servoloop.Endpoint
	TrajEndpoint   *trajloop.Endpoint
	ToolEndpoint   *toolloop.Endpoint
	TaskEndpoint   *taskloop.Endpoint

	servoLoops []*servoloop.Loop
	trajLoop   *trajloop.Loop
	toolLoop   *toolloop.Loop
	taskLoop   *taskloop.Loop
}

// Build loads the inifile and constructs every loop and endpoint without
// starting any goroutine (spec.md §9, "ulapi_init → go_init → map shm").
func Build(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.IniPath)
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}

	logDir := opts.LogDir
	if logDir == "" {
		logDir = cfg.Task.ProgDir
	}
	log := logging.New(os.Stderr)
	if logDir != "" {
		if l, runID, err := logging.OpenRunLog(logDir); err == nil {
			log = l.With().Str("run_id", runID).Logger()
		} else {
			log.Warn().Err(err).Str("dir", logDir).Msg("falling back to stderr logging")
		}
	}

	numJoints := cfg.Servo.HowMany
	servoCycle := cfg.Traj.CycleTime
	if numJoints > 0 {
		servoCycle = cfg.Servo.Servos[0].CycleTime
	}
	cycleMult := cycleMultFrom(cfg.Traj.CycleTime, servoCycle)
	adapter, err := buildAdapter(cfg.Gomotion.ExtInitString, numJoints, servoCycle)
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}
	if res := adapter.Init(); res != extio.ResultOK {
		return nil, fmt.Errorf("launcher: adapter init: %s", res)
	}

	kin, err := kinematics.Select(cfg.Traj.Kinematics)
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}
	links := linksFrom(cfg.Servo.Servos)
	if cfg.Task.ParameterFileName != "" {
		if fileLinks, err := config.LoadLinks(cfg.Task.ParameterFileName); err != nil {
			return nil, fmt.Errorf("launcher: %w", err)
		} else if len(fileLinks) > 0 {
			links = fileLinks
		}
	}
	if err := kin.SetParameters(links); err != nil {
		return nil, fmt.Errorf("launcher: kinematics parameters: %w", err)
	}

	servoEndpoints := make([]*servoloop.Endpoint, numJoints)
	servoLoops := make([]*servoloop.Loop, numJoints)
	for i := 0; i < numJoints; i++ {
		adapter.JointInit(i)
		adapter.JointEnable(i)
		ep := servoloop.NewEndpoint()
		ep.WriteCfg(servoCfgFrom(cfg.Servo.Servos[i], cycleMult))
		servoEndpoints[i] = ep
		logCap := 0
		if cfg.Traj.Debug {
			logCap = 64
		}
		servoLoops[i] = servoloop.NewLoop(i, ep, adapter, logCap)
	}

	trajEndpoint := trajloop.NewEndpoint()
	trajL := trajloop.NewLoop(trajEndpoint, nil, servoEndpoints, kin, trajQueueCapacity)
	trajL.Log = log
	trajEndpoint.WriteCfg(trajCfgFrom(cfg.Traj, cfg.Servo.Servos, links, cycleMult))

	toolNames, numOutputs := []string(nil), toolOutputCount
	if cfg.Task.ToolFileName != "" {
		names, err := config.LoadToolNames(cfg.Task.ToolFileName)
		if err != nil {
			return nil, fmt.Errorf("launcher: %w", err)
		}
		if len(names) > 0 {
			toolNames, numOutputs = names, len(names)
		}
	}
	toolEndpoint := toolloop.NewEndpoint()
	toolL := toolloop.NewLoop(toolEndpoint)
	toolEndpoint.WriteCfg(toolloop.CfgPayload{NumOutputs: numOutputs, Names: toolNames})

	taskEndpoint := taskloop.NewEndpoint()
	taskL := taskloop.NewLoop(taskEndpoint, trajL, toolL, interpListCapacity)
	taskEndpoint.WriteCfg(taskloop.CfgPayload{
		CycleTime:          cfg.Task.CycleTime,
		Strict:             cfg.Task.Strict,
		ProgDir:            cfg.Task.ProgDir,
		MTTF:               cfg.Task.MTTF,
		MTTR:               cfg.Task.MTTR,
		TrajQueueCapacity:  trajQueueCapacity,
		InterpListCapacity: interpListCapacity,
	})

	return &Runtime{
		Config:         cfg,
		Log:            log,
		Adapter:        adapter,
		Kin:            kin,
		ServoEndpoints: servoEndpoints,
		TrajEndpoint:   trajEndpoint,
		ToolEndpoint:   toolEndpoint,
		TaskEndpoint:   taskEndpoint,
		servoLoops:     servoLoops,
		trajLoop:       trajL,
		toolLoop:       toolL,
		taskLoop:       taskL,
	}, nil
}

const (
	trajQueueCapacity  = 16
	interpListCapacity = 16
	toolOutputCount    = 8
)

// Run spawns one goroutine per loop and blocks until ctx is cancelled
// (spec.md §9, "spawn servo tasks (N) → spawn traj task → spawn tool task →
// spawn task task → wait on signal"). Every servo loop and the tool/task
// loops run on their own fixed-period channerics ticker; Traj has no sleep
// of its own and instead wakes on trajSem, a single counting semaphore that
// Servo 0 releases every cycle_mult ticks (spec.md §5, "Servo ⇄ Traj").
// On return every loop has already stopped; Run itself performs the final
// "ext_quit" step.
func Run(ctx context.Context, rt *Runtime) error {
	g, gctx := errgroup.WithContext(ctx)

	trajSem := semaphore.NewWeighted(math.MaxInt64)
	for i, sl := range rt.servoLoops {
		sl := sl
		period := cyclePeriod(rt.Config.Servo.Servos[i].CycleTime)
		if i == 0 {
			g.Go(func() error {
				return runPeriodic(gctx, period, func() {
					sl.Tick()
					if sl.DueForTrajRelease() {
						trajSem.Release(1)
					}
				})
			})
			continue
		}
		g.Go(func() error { return runPeriodic(gctx, period, sl.Tick) })
	}
	g.Go(func() error { return runSemaphored(gctx, trajSem, rt.trajLoop.Tick) })
	g.Go(func() error { return runPeriodic(gctx, cyclePeriod(rt.Config.Traj.CycleTime), rt.toolLoop.Tick) })
	g.Go(func() error { return runPeriodic(gctx, cyclePeriod(rt.Config.Task.CycleTime), rt.taskLoop.Tick) })

	<-ctx.Done()
	err := g.Wait()

	if res := rt.Adapter.Quit(); res != extio.ResultOK {
		rt.Log.Warn().Stringer("result", res).Msg("adapter quit did not report ok")
	}
	rt.Log.Info().Msg("gomotion stopped")
	return err
}

// runPeriodic ticks fn on a channerics ticker until ctx is cancelled, the
// same done-channel-aware ticker idiom niceyeti-tabular uses for its own
// periodic loops.
func runPeriodic(ctx context.Context, period time.Duration, tick func()) error {
	for range channerics.NewTicker(ctx.Done(), period) {
		tick()
	}
	return nil
}

// runSemaphored ticks fn each time sem is released, blocking in between
// (spec.md §5: "Only wait(period) at end of cycle and sem_take on servo_sem
// in Traj"). It returns once ctx is cancelled.
func runSemaphored(ctx context.Context, sem *semaphore.Weighted, tick func()) error {
	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		tick()
	}
}

func cyclePeriod(seconds float32) time.Duration {
	if seconds <= 0 {
		return time.Millisecond
	}
	return time.Duration(seconds * float32(time.Second))
}

// buildAdapter selects an extio.Adapter from the INI file's EXT_INIT_STRING
// (spec.md §6): "sim" (or empty) for the in-memory single integrator,
// "serial:<port>[:<baud>]" for the Smart Motor backend.
func buildAdapter(initString string, numJoints int, cycleTime float32) (extio.Adapter, error) {
	parts := strings.Split(strings.TrimSpace(initString), ":")
	switch strings.ToLower(parts[0]) {
	case "", "sim", "simulator":
		return extio.NewSimulator(numJoints, 0, 0, 0, 0, cycleTime), nil
	case "serial":
		if len(parts) < 2 || parts[1] == "" {
			return nil, fmt.Errorf("EXT_INIT_STRING %q: serial backend needs a port", initString)
		}
		baud := 115200
		if len(parts) >= 3 {
			if b, err := strconv.Atoi(parts[2]); err == nil {
				baud = b
			}
		}
		return extio.NewSerialSmartMotor(parts[1], baud, time.Second)
	default:
		return nil, fmt.Errorf("EXT_INIT_STRING %q: unknown backend %q", initString, parts[0])
	}
}

func linksFrom(servos []config.Servo) []kinematics.Link {
	links := make([]kinematics.Link, len(servos))
	for i, s := range servos {
		links[i] = s.Link
	}
	return links
}

// cycleMultFrom derives cycle_mult from the ratio of the traj and servo
// cycle times (spec.md §4.6's configuration table, "cycle_time (propagates
// cycle_mult to Servo 0)"): how many servo ticks fit in one traj tick.
func cycleMultFrom(trajCycle, servoCycle float32) int {
	if trajCycle <= 0 || servoCycle <= 0 {
		return 1
	}
	mult := int(trajCycle/servoCycle + 0.5)
	if mult < 1 {
		return 1
	}
	return mult
}

func servoCfgFrom(s config.Servo, cycleMult int) servoloop.CfgPayload {
	return servoloop.CfgPayload{
		CycleTime:   s.CycleTime,
		CycleMult:   cycleMult,
		InputScale:  s.InputScale,
		PassThrough: s.Control == config.ControlPass,
		Home:        s.Home,
		P:           s.P,
		I:           s.I,
		D:           s.D,
		Pff:         s.Pff,
		Vff:         s.Vff,
		Aff:         s.Aff,
		PosBias:     s.PosBias,
		NegBias:     s.NegBias,
		Deadband:    s.Deadband,
		OutputMin:   s.MinOutput,
		OutputMax:   s.MaxOutput,
		Interp:      servoloop.InterpLinear,
	}
}

func trajCfgFrom(t config.Traj, servos []config.Servo, links []kinematics.Link, cycleMult int) trajloop.CfgPayload {
	n := len(servos)
	min := make([]float32, n)
	max := make([]float32, n)
	limits := make([]motion.Limits, n)
	for i, s := range servos {
		min[i] = s.MinLimit
		max[i] = s.MaxLimit
		limits[i] = motion.Limits{Vel: s.MaxVel, Accel: s.MaxAcc, Jerk: s.MaxJerk}
	}
	return trajloop.CfgPayload{
		CycleTime:       t.CycleTime,
		CycleMult:       cycleMult,
		Debug:           t.Debug,
		JointLimitMin:   min,
		JointLimitMax:   max,
		WorldPosMin:     t.MinLimit.Tran,
		WorldPosMax:     t.MaxLimit.Tran,
		Home:            t.Home,
		TranLimit:       motion.Limits{Vel: t.MaxTVel, Accel: t.MaxTAcc, Jerk: t.MaxTJerk},
		RotLimit:        motion.Limits{Vel: t.MaxRVel, Accel: t.MaxRAcc, Jerk: t.MaxRJerk},
		JointLimits:     limits,
		MaxTVel:         t.MaxTVel,
		MaxRVel:         t.MaxRVel,
		MaxTAccel:       t.MaxTAcc,
		MaxRAccel:       t.MaxRAcc,
		MaxTJerk:        t.MaxTJerk,
		MaxRJerk:        t.MaxRJerk,
		KinematicsName:  t.Kinematics,
		KinematicsLinks: links,
		Scale:           1,
		MaxScale:        t.MaxScale,
		ScaleV:          t.ScaleV,
		ScaleA:          t.ScaleA,
		ToolTransform:   t.ToolTransform,
		LogEnabled:      t.Debug,
	}
}
