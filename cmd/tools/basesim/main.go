// Command basesim runs a simulated motion controller for mission daemon
// development and integration testing.
//
// It listens for a base link connection, consumes goal commands, and drives
// a simple kinematic robot toward the active goal, publishing pose lines at
// a fixed rate. Point the mission daemon at it with -link tcp://host:port.
//
// Usage:
//
//	go run ./cmd/tools/basesim [flags]
//
// Flags:
//
//	-listen    TCP listen address (default: 127.0.0.1:7072)
//	-frame     Frame id stamped on pose lines (default: world)
//	-speed     Drive speed in m/s (default: 0.5)
//	-turn      Turn rate in rad/s (default: 1.0)
//	-rate      Pose publish rate in Hz (default: 10)
//	-noise     Stddev of reported position noise in metres (default: 0)
//	-start     Initial pose as x,y[,yaw] (default: 0,0,0)
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ferrule-robotics/missiond/internal/geom"
	"github.com/ferrule-robotics/missiond/internal/wire"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:7072", "TCP listen address for the base link")
	frame := flag.String("frame", "world", "Frame id stamped on pose lines")
	speed := flag.Float64("speed", 0.5, "Drive speed in m/s")
	turn := flag.Float64("turn", 1.0, "Turn rate in rad/s")
	rate := flag.Float64("rate", 10, "Pose publish rate in Hz")
	noise := flag.Float64("noise", 0, "Stddev of reported position noise in metres")
	start := flag.String("start", "0,0,0", "Initial pose as x,y[,yaw]")
	flag.Parse()

	startPose, err := parsePose(*start)
	if err != nil {
		log.Fatalf("Error: bad -start pose: %v", err)
	}
	if *rate <= 0 {
		log.Fatal("Error: -rate must be positive")
	}

	sim := NewSimulator(startPose)
	sim.Speed = *speed
	sim.TurnRate = *turn
	sim.Noise = *noise

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", *listen, err)
	}

	log.Printf("Simulated motion controller listening on %s", ln.Addr())
	log.Printf("Robot at (%.2f, %.2f, yaw %.2f), speed %.2f m/s, turn %.2f rad/s, %g Hz",
		startPose.X, startPose.Y, startPose.Yaw, *speed, *turn, *rate)
	log.Printf("Point the mission daemon at it with -link tcp://%s", ln.Addr())

	interval := time.Duration(float64(time.Second) / *rate)
	go serve(ln, sim, *frame, interval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutting down...")
	ln.Close()
}

// parsePose parses "x,y" or "x,y,yaw" into a pose.
func parsePose(s string) (geom.Pose, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return geom.Pose{}, fmt.Errorf("want x,y or x,y,yaw, got %q", s)
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geom.Pose{}, fmt.Errorf("bad coordinate %q", part)
		}
		vals[i] = v
	}
	p := geom.Pose{X: vals[0], Y: vals[1]}
	if len(vals) == 3 {
		p.Yaw = vals[2]
	}
	return p, nil
}

// serve accepts link connections until the listener closes. The simulator
// state is shared across connections, so a daemon that reconnects finds the
// robot where the last session left it.
func serve(ln net.Listener, sim *Simulator, frame string, interval time.Duration) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("accept failed: %v", err)
			}
			return
		}
		log.Printf("link connected from %s", conn.RemoteAddr())
		go handleConn(conn, sim, frame, interval)
	}
}

// handleConn reads goal lines and writes pose lines on one link connection.
// The reader goroutine ends when the peer closes or the writer hits an
// error and closes the socket under it.
func handleConn(conn net.Conn, sim *Simulator, frame string, interval time.Duration) {
	defer conn.Close()
	defer log.Printf("link from %s closed", conn.RemoteAddr())

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()
			if wire.Classify(line) != wire.TypeGoal {
				continue
			}
			goal, err := wire.ParseGoal(line)
			if err != nil {
				log.Printf("bad goal line: %v", err)
				continue
			}
			target := goal.Pose()
			sim.SetGoal(target)
			log.Printf("goal accepted: %s/%s -> (%.2f, %.2f, yaw %.2f)",
				goal.Mission, goal.Goal, target.X, target.Y, target.Yaw)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			reported := sim.Step(now.Sub(last))
			last = now
			line, err := wire.EncodePose(wire.NewPoseMessage(now, frame, reported))
			if err != nil {
				log.Printf("failed to encode pose: %v", err)
				continue
			}
			if _, err := conn.Write(line); err != nil {
				return
			}
		}
	}
}
