// Package config loads the mission plan configuration file. The file is
// YAML with three sections: planner tuning, base link parameters, and the
// missions themselves. Mission and goal order in the file is execution
// order, so the missions section is decoded through yaml.Node rather than
// a Go map.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ferrule-robotics/missiond/internal/geom"
	"github.com/ferrule-robotics/missiond/internal/linkmux"
	"github.com/ferrule-robotics/missiond/internal/mission"
)

// Config is the parsed configuration file.
type Config struct {
	Planner  PlannerConfig
	Link     linkmux.PortOptions
	Missions []mission.Mission
}

// PlannerConfig holds sequencing tuning. Fields omitted from the file stay
// nil and the Get methods fall back to defaults, so partial configs are
// safe.
type PlannerConfig struct {
	DistanceToleranceM *float64 `yaml:"distance_tolerance_m,omitempty" json:"distance_tolerance_m,omitempty"`
	AngleToleranceRad  *float64 `yaml:"angle_tolerance_rad,omitempty" json:"angle_tolerance_rad,omitempty"`
	GoalCountdownTicks *int     `yaml:"goal_countdown_ticks,omitempty" json:"goal_countdown_ticks,omitempty"`
	TickInterval       *string  `yaml:"tick_interval,omitempty" json:"tick_interval,omitempty"` // duration string like "1s"
	FrameID            *string  `yaml:"frame_id,omitempty" json:"frame_id,omitempty"`
	RetryAborted       *bool    `yaml:"retry_aborted,omitempty" json:"retry_aborted,omitempty"`
	MissionRetries     *int     `yaml:"mission_retries,omitempty" json:"mission_retries,omitempty"`
}

// GetDistanceTolerance returns the arrival distance tolerance in meters.
func (p *PlannerConfig) GetDistanceTolerance() float64 {
	if p.DistanceToleranceM == nil {
		return 0.3
	}
	return *p.DistanceToleranceM
}

// GetAngleTolerance returns the arrival heading tolerance in radians.
func (p *PlannerConfig) GetAngleTolerance() float64 {
	if p.AngleToleranceRad == nil {
		return 0.7
	}
	return *p.AngleToleranceRad
}

// GetCountdownTicks returns the per-goal countdown budget.
func (p *PlannerConfig) GetCountdownTicks() int {
	if p.GoalCountdownTicks == nil {
		return 4
	}
	return *p.GoalCountdownTicks
}

// GetTickInterval returns the countdown tick interval.
func (p *PlannerConfig) GetTickInterval() time.Duration {
	if p.TickInterval == nil || *p.TickInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*p.TickInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// GetFrameID returns the world frame id stamped on outbound goals.
func (p *PlannerConfig) GetFrameID() string {
	if p.FrameID == nil || *p.FrameID == "" {
		return "world"
	}
	return *p.FrameID
}

// GetRetryAborted reports whether an aborted mission is retried instead of
// failing the plan.
func (p *PlannerConfig) GetRetryAborted() bool {
	if p.RetryAborted == nil {
		return false
	}
	return *p.RetryAborted
}

// GetMissionRetries returns how many retries each mission gets when
// retry_aborted is on.
func (p *PlannerConfig) GetMissionRetries() int {
	if p.MissionRetries == nil {
		return 0
	}
	return *p.MissionRetries
}

type rawConfig struct {
	Planner  PlannerConfig       `yaml:"planner"`
	Link     linkmux.PortOptions `yaml:"link"`
	Missions yaml.Node           `yaml:"missions"`
}

type goalSpec struct {
	XM     float64 `yaml:"x_m"`
	YM     float64 `yaml:"y_m"`
	YawRad float64 `yaml:"yaw_rad"`
}

// Load reads and validates a mission plan file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	missions, err := parseMissions(&raw.Missions)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Planner:  raw.Planner,
		Link:     raw.Link,
		Missions: missions,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseMissions walks the missions mapping node in document order. Each
// entry is mission name -> ordered mapping of goal name -> coordinates.
func parseMissions(node *yaml.Node) ([]mission.Mission, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("config has no missions section")
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("missions must be a mapping of mission name to goals")
	}

	missions := make([]mission.Mission, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		nameNode, goalsNode := node.Content[i], node.Content[i+1]
		m := mission.Mission{Name: nameNode.Value}
		if goalsNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("mission %q: goals must be a mapping of goal name to coordinates", m.Name)
		}
		for j := 0; j+1 < len(goalsNode.Content); j += 2 {
			goalName, coordNode := goalsNode.Content[j], goalsNode.Content[j+1]
			var gs goalSpec
			if err := coordNode.Decode(&gs); err != nil {
				return nil, fmt.Errorf("mission %q goal %q: %w", m.Name, goalName.Value, err)
			}
			m.Goals = append(m.Goals, mission.Goal{
				Name: goalName.Value,
				Pose: geom.Pose{X: gs.XM, Y: gs.YM, Yaw: gs.YawRad},
			})
		}
		missions = append(missions, m)
	}
	return missions, nil
}

// Validate checks the whole configuration. Mission plan problems are
// reported here, before anything executes.
func (c *Config) Validate() error {
	if d := c.Planner.GetDistanceTolerance(); d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("distance_tolerance_m must be positive, got %v", d)
	}
	if a := c.Planner.GetAngleTolerance(); a <= 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return fmt.Errorf("angle_tolerance_rad must be positive, got %v", a)
	}
	if n := c.Planner.GetCountdownTicks(); n < 1 {
		return fmt.Errorf("goal_countdown_ticks must be at least 1, got %d", n)
	}
	if c.Planner.TickInterval != nil && *c.Planner.TickInterval != "" {
		if _, err := time.ParseDuration(*c.Planner.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval %q: %w", *c.Planner.TickInterval, err)
		}
	}
	if n := c.Planner.GetMissionRetries(); n < 0 {
		return fmt.Errorf("mission_retries must be non-negative, got %d", n)
	}
	if c.Planner.GetRetryAborted() && c.Planner.GetMissionRetries() < 1 {
		return fmt.Errorf("retry_aborted requires mission_retries of at least 1")
	}

	if _, err := c.Link.Normalize(); err != nil {
		return fmt.Errorf("link: %w", err)
	}

	if len(c.Missions) == 0 {
		return fmt.Errorf("config defines no missions")
	}
	seenMissions := make(map[string]bool, len(c.Missions))
	for _, m := range c.Missions {
		if m.Name == "" {
			return fmt.Errorf("mission with empty name")
		}
		if seenMissions[m.Name] {
			return fmt.Errorf("duplicate mission %q", m.Name)
		}
		seenMissions[m.Name] = true
		if len(m.Goals) == 0 {
			return fmt.Errorf("mission %q has no goals", m.Name)
		}
		seenGoals := make(map[string]bool, len(m.Goals))
		for _, g := range m.Goals {
			if g.Name == "" {
				return fmt.Errorf("mission %q has a goal with empty name", m.Name)
			}
			if seenGoals[g.Name] {
				return fmt.Errorf("mission %q: duplicate goal %q", m.Name, g.Name)
			}
			seenGoals[g.Name] = true
			for _, v := range []float64{g.Pose.X, g.Pose.Y, g.Pose.Yaw} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("mission %q goal %q has non-finite coordinates", m.Name, g.Name)
				}
			}
		}
	}
	return nil
}
