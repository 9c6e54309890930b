// Command taskserver is a thin ASCII line-oriented TCP front end over
// taskloop.Loop's command/status API (spec.md §6, "wire protocol"). It is
// not part of the core control pipeline — §1 lists the ASCII TCP command
// server among the external front-ends out of scope for the core itself —
// but it ships as a runnable demonstration of that boundary, built with the
// same flag-parsing-plus-signal-context CLI shape used throughout this
// repo's cmd/ binaries.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/itohio/gomotion/launcher"
	"github.com/itohio/gomotion/shm"
	"github.com/itohio/gomotion/taskloop"
)

var errColor = color.New(color.FgRed)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("taskserver", flag.ContinueOnError)
	iniPath := fs.String("i", "", "path to the gomotion INI configuration file")
	port := fs.Int("p", 0, "TCP port to listen on (0 uses the INI file's TASK.TCP_PORT)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *iniPath == "" {
		errColor.Fprintln(os.Stderr, "taskserver: -i <inifile> is required")
		fs.Usage()
		return 1
	}

	rt, err := launcher.Build(launcher.Options{IniPath: *iniPath})
	if err != nil {
		errColor.Fprintf(os.Stderr, "taskserver: %v\n", err)
		return 1
	}

	listenPort := *port
	if listenPort == 0 {
		listenPort = rt.Config.Task.TCPPort
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", listenPort))
	if err != nil {
		errColor.Fprintf(os.Stderr, "taskserver: %v\n", err)
		return 1
	}
	defer ln.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	errc := make(chan error, 1)
	go func() { errc <- launcher.Run(ctx, rt) }()

	rt.Log.Info().Int("port", listenPort).Msg("taskserver listening")
	acceptLoop(ln, rt.TaskEndpoint)

	if err := <-errc; err != nil {
		errColor.Fprintf(os.Stderr, "taskserver: %v\n", err)
		return 1
	}
	return 0
}

// acceptLoop serves connections until ln is closed (the launcher's context
// cancellation closes it, per the goroutine started in run above).
func acceptLoop(ln net.Listener, ep *taskloop.Endpoint) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go serveConn(conn, ep)
	}
}

func serveConn(conn net.Conn, ep *taskloop.Endpoint) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, ok := dispatch(line, ep)
		if ok {
			fmt.Fprint(conn, reply)
		}
	}
}

// dispatch handles one wire-protocol line (spec.md §6): "? " requests
// status, "! <serial> init|reset|stop|run <program>" issues a command. Only
// "?" produces a reply.
func dispatch(line string, ep *taskloop.Endpoint) (string, bool) {
	switch {
	case line == "?":
		return statusReply(ep), true
	case strings.HasPrefix(line, "!"):
		handleCommand(line, ep)
		return "", false
	default:
		return "", false
	}
}

func statusReply(ep *taskloop.Endpoint) string {
	stat, ok := ep.ReadStat()
	if !ok {
		return "0 error\n"
	}
	word := "exec"
	switch stat.Status {
	case shm.StatusDone:
		word = "done"
	case shm.StatusError:
		word = "error"
	}
	return fmt.Sprintf("%d %s\n", stat.EchoSerialNumber, word)
}

func handleCommand(line string, ep *taskloop.Endpoint) {
	fields := strings.Fields(strings.TrimPrefix(line, "!"))
	if len(fields) < 2 {
		return
	}
	// fields[0] is the client-chosen serial tag, echoed back implicitly
	// through the shm serial-number protocol once the command is accepted.
	if _, err := strconv.ParseUint(fields[0], 10, 64); err != nil {
		return
	}

	switch strings.ToLower(fields[1]) {
	case "init", "reset":
		ep.WriteCmd(taskloop.CmdPayload{Command: taskloop.CmdReset})
	case "stop":
		ep.WriteCmd(taskloop.CmdPayload{Command: taskloop.CmdStop})
	case "run":
		if len(fields) < 3 {
			return
		}
		ep.WriteCmd(taskloop.CmdPayload{Command: taskloop.CmdStart, ProgramPath: fields[2]})
	}
}
