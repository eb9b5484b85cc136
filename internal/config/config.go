package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Connection Connection `yaml:"connection"`
	Timing     Timing     `yaml:"timing"`
	Harvest    Harvest    `yaml:"harvest"`
	Cover      Cover      `yaml:"cover"`
	Names      Names      `yaml:"names"`
	Data       Data       `yaml:"data"`
}

type Connection struct {
	URL       string `yaml:"url"`
	AgentName string `yaml:"agent_name"`
	MaxQueue  int    `yaml:"max_queue"`
}

type Timing struct {
	IdleIntervalMs int `yaml:"idle_interval_ms"`
	GrowthWaitMs   int `yaml:"growth_wait_ms"`
	RadiusDelayMs  int `yaml:"radius_delay_ms"`
	ReadyTimeoutMs int `yaml:"ready_timeout_ms"`
}

type Harvest struct {
	InitialRadius    int    `yaml:"initial_radius"`
	MaxRadius        int    `yaml:"max_radius"`
	FindCap          int    `yaml:"find_cap"`
	GrownStage       int    `yaml:"grown_stage"`
	HarvestMin       int    `yaml:"harvest_min"`
	HarvestReach     int    `yaml:"harvest_reach"`
	SowMin           int    `yaml:"sow_min"`
	SowReach         int    `yaml:"sow_reach"`
	ItemMinDistance  int    `yaml:"item_min_distance"`
	ItemRadiusFactor int    `yaml:"item_radius_factor"`
	FastRadius       int    `yaml:"fast_radius"`
	Seed             string `yaml:"seed"`
	Tool             string `yaml:"tool,omitempty"`
}

type Cover struct {
	MinDistance int    `yaml:"min_distance"`
	PlaceReach  int    `yaml:"place_reach"`
	MaxRadius   int    `yaml:"max_radius"`
	FindCap     int    `yaml:"find_cap"`
	Item        string `yaml:"item"`
}

// Names maps semantic roles to catalog palette names.
type Names struct {
	Air         string `yaml:"air"`
	Farmland    string `yaml:"farmland"`
	WheatCrop   string `yaml:"wheat_crop"`
	WheatSeed   string `yaml:"wheat_seed"`
	Wheat       string `yaml:"wheat"`
	CarrotCrop  string `yaml:"carrot_crop"`
	Carrot      string `yaml:"carrot"`
	PotatoCrop  string `yaml:"potato_crop"`
	Potato      string `yaml:"potato"`
	WhiteCarpet string `yaml:"white_carpet"`
	Cobblestone string `yaml:"cobblestone"`
}

type Data struct {
	Dir       string `yaml:"dir"`
	Journal   bool   `yaml:"journal"`
	StatsDB   bool   `yaml:"stats_db"`
	StatsPath string `yaml:"stats_path"`
}

func Defaults() Config {
	return Config{
		Connection: Connection{
			URL:       "ws://localhost:8080/v1/ws",
			AgentName: "farmbot",
			MaxQueue:  16,
		},
		Timing: Timing{
			IdleIntervalMs: 3000,
			GrowthWaitMs:   10000,
			RadiusDelayMs:  100,
			ReadyTimeoutMs: 30000,
		},
		Harvest: Harvest{
			InitialRadius:    3,
			MaxRadius:        70,
			FindCap:          128,
			GrownStage:       7,
			HarvestMin:       0,
			HarvestReach:     2,
			SowMin:           0,
			SowReach:         3,
			ItemMinDistance:  2,
			ItemRadiusFactor: 4,
			FastRadius:       8,
			Seed:             "WHEAT_SEEDS",
		},
		Cover: Cover{
			MinDistance: 2,
			PlaceReach:  5,
			MaxRadius:   60,
			FindCap:     128,
			Item:        "WHITE_CARPET",
		},
		Names: Names{
			Air:         "AIR",
			Farmland:    "FARMLAND",
			WheatCrop:   "WHEAT",
			WheatSeed:   "WHEAT_SEEDS",
			Wheat:       "WHEAT",
			CarrotCrop:  "CARROTS",
			Carrot:      "CARROT",
			PotatoCrop:  "POTATOES",
			Potato:      "POTATO",
			WhiteCarpet: "WHITE_CARPET",
			Cobblestone: "COBBLESTONE",
		},
		Data: Data{
			Dir:       "./data",
			Journal:   true,
			StatsDB:   false,
			StatsPath: "stats.sqlite",
		},
	}
}

// Load reads a YAML file on top of Defaults. A missing file yields the
// defaults together with an error satisfying os.IsNotExist.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Connection.URL == "" {
		errs = append(errs, errors.New("connection.url is empty"))
	}
	if c.Harvest.InitialRadius <= 0 || c.Harvest.MaxRadius < c.Harvest.InitialRadius {
		errs = append(errs, fmt.Errorf("harvest radius range invalid: initial=%d max=%d", c.Harvest.InitialRadius, c.Harvest.MaxRadius))
	}
	if c.Harvest.InitialRadius < c.Harvest.SowReach {
		errs = append(errs, fmt.Errorf("harvest.initial_radius=%d must not be less than sow_reach=%d", c.Harvest.InitialRadius, c.Harvest.SowReach))
	}
	if c.Harvest.FindCap <= 0 || c.Cover.FindCap <= 0 {
		errs = append(errs, errors.New("find_cap must be positive"))
	}
	if c.Cover.MinDistance <= 0 || c.Cover.MaxRadius < c.Cover.MinDistance {
		errs = append(errs, fmt.Errorf("cover radius range invalid: min=%d max=%d", c.Cover.MinDistance, c.Cover.MaxRadius))
	}
	if c.Harvest.Seed == "" || c.Cover.Item == "" {
		errs = append(errs, errors.New("harvest.seed and cover.item are required"))
	}
	if c.Timing.IdleIntervalMs <= 0 || c.Timing.GrowthWaitMs <= 0 || c.Timing.RadiusDelayMs < 0 {
		errs = append(errs, errors.New("timing values must be positive"))
	}
	return errors.Join(errs...)
}

func (t Timing) IdleInterval() time.Duration { return ms(t.IdleIntervalMs) }
func (t Timing) GrowthWait() time.Duration   { return ms(t.GrowthWaitMs) }
func (t Timing) RadiusDelay() time.Duration  { return ms(t.RadiusDelayMs) }
func (t Timing) ReadyTimeout() time.Duration { return ms(t.ReadyTimeoutMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
