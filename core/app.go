package core

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"sync"
	"syscall"
	"time"
)

const (
	// Default shutdown hook execution order.
	DefShutdownOrder = 5

	// Components like database that are essential and must be ready before anything else.
	BootstrapOrderL1 = -20

	// Components that are bootstraped before the web server, e.g., the message broker connection.
	BootstrapOrderL2 = -15

	// The web server or anything similar.
	BootstrapOrderL3 = -10

	// Components that introduce inbound requests or job scheduling, e.g., the MQ consumers.
	BootstrapOrderL4 = -5
)

var (
	globalApp = newApp()
)

type ComponentBootstrap struct {
	// name of the component.
	Name string
	// the actual bootstrap function.
	Bootstrap func(rail Rail) error
	// check whether component should be bootstraped
	Condition func(rail Rail) (bool, error)
	// order of which the components are bootstraped, natural order, it's by default 0.
	Order int
}

type OrderedShutdownHook struct {
	Hook  func()
	Order int
}

type App struct {
	// channel for signaling server shutdown
	manualSigQuit chan int

	mu             sync.Mutex
	shuttingDown   bool
	shutdownHook   []OrderedShutdownHook
	bootstrapComps []ComponentBootstrap
	postBootstrap  []func(rail Rail) error
}

func newApp() *App {
	return &App{
		manualSigQuit: make(chan int, 15),
	}
}

/*
Bootstrap app.

Config file is loaded, logging configured, then the registered components are bootstrapped in order.
If any component fails to bootstrap, the shutdown hooks are triggered and the process exits with code 1.

Once all components are up, it blocks until SIGINT/SIGTERM or Shutdown() is called.
*/
func (a *App) Bootstrap(args []string) {
	DefaultReadConfig(args)
	ConfigureLogging()

	osSigQuit := make(chan os.Signal, 2)
	signal.Notify(osSigQuit, os.Interrupt, syscall.SIGTERM)

	rail := EmptyRail()
	appName := GetPropStr(PropAppName)
	start := time.Now()

	rail.Infof("\n\n---------------------------------------------- starting %s -------------------------------------------------------\n", appName)
	rail.Infof("Production Mode: %v", IsProdMode())

	if err := a.BootstrapComponents(rail); err != nil {
		rail.Errorf("Failed to bootstrap %v, %v", appName, err)
		a.triggerShutdownHook()
		os.Exit(1)
	}

	rail.Infof("\n\n---------------------------------------------- %s started (took: %dms) --------------------------------------------\n",
		appName, time.Since(start).Milliseconds())

	select {
	case sig := <-osSigQuit:
		rail.Infof("Received OS signal: %v, exiting", sig)
	case <-a.manualSigQuit:
		rail.Infof("Received manual shutdown signal, exiting")
	}
	a.triggerShutdownHook()
}

// Bootstrap registered components sorted by their orders, then invoke the PostServerBootstrap callbacks.
func (a *App) BootstrapComponents(rail Rail) error {
	a.mu.Lock()
	comps := a.bootstrapComps
	a.bootstrapComps = nil
	a.mu.Unlock()

	sort.SliceStable(comps, func(i, j int) bool { return comps[i].Order < comps[j].Order })
	for _, c := range comps {
		if c.Condition != nil {
			ok, err := c.Condition(rail)
			if err != nil {
				return WrapErrf(err, "failed on condition check of component %v", c.Name)
			}
			if !ok {
				continue
			}
		}

		rail.Debugf("Starting to bootstrap component %-30s", c.Name)
		start := time.Now()
		if err := c.Bootstrap(rail); err != nil {
			return WrapErrf(err, "failed to bootstrap component %v", c.Name)
		}
		took := time.Since(start)
		rail.Debugf("Callback %-30s - took %v", c.Name, took)
		if took >= 5*time.Second {
			rail.Warnf("Component '%s' might be too slow to bootstrap, took: %v", c.Name, took)
		}
	}

	a.mu.Lock()
	post := a.postBootstrap
	a.postBootstrap = nil
	a.mu.Unlock()
	for _, f := range post {
		if err := f(rail); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) triggerShutdownHook() {
	a.mu.Lock()
	if a.shuttingDown {
		a.mu.Unlock()
		return
	}
	a.shuttingDown = true
	hooks := a.shutdownHook
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Order < hooks[j].Order })
		for _, h := range hooks {
			runHookSafe(h.Hook)
		}
	}()

	timeout := GetPropDur(PropServerGracefulShutdownTimeSec, time.Second)
	if timeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		Warnf("Exceeded server graceful shutdown period (%v), stop waiting for shutdown hook execution", timeout)
	}
}

// hook can never panic
func runHookSafe(hook func()) {
	defer func() {
		if v := recover(); v != nil {
			Errorf("panic recovered in shutdown hook, %v\n%s", v, debug.Stack())
		}
	}()
	hook()
}

// Register shutdown hook, hook should never panic
func (a *App) AddShutdownHook(hook func()) {
	a.AddOrderedShutdownHook(DefShutdownOrder, hook)
}

func (a *App) AddOrderedShutdownHook(order int, hook func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownHook = append(a.shutdownHook, OrderedShutdownHook{Order: order, Hook: hook})
}

func (a *App) RegisterBootstrapCallback(c ComponentBootstrap) {
	if c.Bootstrap == nil {
		panic(fmt.Errorf("component %v has no bootstrap func", c.Name))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bootstrapComps = append(a.bootstrapComps, c)
}

func (a *App) PostServerBootstrap(f ...func(rail Rail) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.postBootstrap = append(a.postBootstrap, f...)
}

// check if the app is shutting down
func (a *App) IsShuttingDown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shuttingDown
}

// Shutdown app
func (a *App) Shutdown() {
	a.manualSigQuit <- 1
}

// Bootstrap the global app, see (*App).Bootstrap.
func BootstrapServer(args []string) {
	globalApp.Bootstrap(args)
}

// Register component bootstrap callback on the global app.
//
// When such callback is invoked, configuration is fully loaded, the callback is free to read the loaded
// configuration and decide whether the component should be initialized.
func RegisterBootstrapCallback(c ComponentBootstrap) {
	globalApp.RegisterBootstrapCallback(c)
}

// Add listener that is invoked when all components are bootstrapped.
func PostServerBootstrap(f ...func(rail Rail) error) {
	globalApp.PostServerBootstrap(f...)
}

// Register shutdown hook, hook should never panic
func AddShutdownHook(hook func()) {
	globalApp.AddShutdownHook(hook)
}

func AddOrderedShutdownHook(order int, hook func()) {
	globalApp.AddOrderedShutdownHook(order, hook)
}

// check if the app is shutting down
func IsShuttingDown() bool {
	return globalApp.IsShuttingDown()
}

// Shutdown the global app
func Shutdown() {
	globalApp.Shutdown()
}
