// File: utils/config.go
package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ListingConfig is a seed listing for a seller catalogue.
type ListingConfig struct {
	Title string `yaml:"title" json:"title"`
	Price int    `yaml:"price" json:"price"`
}

// SellerConfig names a seller and the listings it starts with.
type SellerConfig struct {
	Name     string          `yaml:"name" json:"name"`
	Listings []ListingConfig `yaml:"listings" json:"listings"`
}

// BuyerConfig names a buyer and the title it targets when none is entered.
type BuyerConfig struct {
	Name   string `yaml:"name" json:"name"`
	Target string `yaml:"target" json:"target"`
}

// Config holds all configurable marketplace parameters.
type Config struct {
	// Buyer: proposal collection
	CollectWindow time.Duration `yaml:"collectWindow" json:"collectWindow"` // How long a round collects replies to a CFP
	StragglerWait time.Duration `yaml:"stragglerWait" json:"stragglerWait"` // Extra wait once every seller has replied
	CollectPoll   time.Duration `yaml:"collectPoll" json:"collectPoll"`     // Mailbox poll slice while collecting

	// Buyer: purchase confirmation
	ConfirmWindow     time.Duration `yaml:"confirmWindow" json:"confirmWindow"`         // Wait for INFORM/REFUSE after ACCEPT_PROPOSAL
	LateConfirmWindow time.Duration `yaml:"lateConfirmWindow" json:"lateConfirmWindow"` // Extra wait before assuming success
	ConfirmPoll       time.Duration `yaml:"confirmPoll" json:"confirmPoll"`             // Mailbox poll slice while confirming

	// Buyer: retries
	MaxNoSellerRetries   int           `yaml:"maxNoSellerRetries" json:"maxNoSellerRetries"`     // Rounds without sellers before terminating
	MaxNoProposalRetries int           `yaml:"maxNoProposalRetries" json:"maxNoProposalRetries"` // Rounds without proposals before terminating
	RequestInterval      time.Duration `yaml:"requestInterval" json:"requestInterval"`           // Pause between negotiation rounds

	// Seller
	SellerPollInterval time.Duration `yaml:"sellerPollInterval" json:"sellerPollInterval"` // Selective receive timeout of each seller server

	// Driver
	SellerStartupDelay time.Duration `yaml:"sellerStartupDelay" json:"sellerStartupDelay"` // Pause between starting sellers and buyers
	CompletionTimeout  time.Duration `yaml:"completionTimeout" json:"completionTimeout"`   // Upper bound for a buying cycle
	CompletionPoll     time.Duration `yaml:"completionPoll" json:"completionPoll"`         // Cadence of completion checks
	LateMessageGrace   time.Duration `yaml:"lateMessageGrace" json:"lateMessageGrace"`     // Pause before stopping buyers of a cycle
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`       // Upper bound for engine shutdown

	// Surfaces
	ListenAddr   string `yaml:"listenAddr" json:"listenAddr"`     // HTTP observer address; empty disables it
	ListingsFile string `yaml:"listingsFile" json:"listingsFile"` // YAML listings file watched for catalogue edits
	LogLevel     string `yaml:"logLevel" json:"logLevel"`         // logrus level name
	LogJSON      bool   `yaml:"logJSON" json:"logJSON"`           // JSON log formatter instead of text

	Sellers []SellerConfig `yaml:"sellers" json:"sellers"`
	Buyers  []BuyerConfig  `yaml:"buyers" json:"buyers"`
}

// SuggestedTitles are printed by the driver as titles worth listing.
var SuggestedTitles = []string{
	"The-Kite-Runner",
	"A-Thousand-Splendid-Suns",
	"Life-of-Pi",
	"The-Alchemist",
}

// DefaultConfig returns a Config struct with default values.
func DefaultConfig() Config {
	return Config{
		// Buyer: proposal collection
		CollectWindow: 10 * time.Second,
		StragglerWait: 1 * time.Second,
		CollectPoll:   500 * time.Millisecond,

		// Buyer: purchase confirmation
		ConfirmWindow:     15 * time.Second,
		LateConfirmWindow: 10 * time.Second,
		ConfirmPoll:       1 * time.Second,

		// Buyer: retries
		MaxNoSellerRetries:   5,
		MaxNoProposalRetries: 3,
		RequestInterval:      10 * time.Second,

		// Seller
		SellerPollInterval: 1 * time.Second,

		// Driver
		SellerStartupDelay: 1 * time.Second,
		CompletionTimeout:  60 * time.Second,
		CompletionPoll:     500 * time.Millisecond,
		LateMessageGrace:   3 * time.Second,
		ShutdownTimeout:    5 * time.Second,

		LogLevel: "info",

		Sellers: []SellerConfig{
			{Name: "Seller1", Listings: []ListingConfig{
				{Title: "The-Kite-Runner", Price: 25},
				{Title: "Life-of-Pi", Price: 20},
			}},
			{Name: "Seller2", Listings: []ListingConfig{
				{Title: "Life-of-Pi", Price: 15},
				{Title: "The-Alchemist", Price: 10},
			}},
		},
		Buyers: []BuyerConfig{
			{Name: "Buyer1", Target: "The-Kite-Runner"},
			{Name: "Buyer2", Target: "Life-of-Pi"},
		},
	}
}

// FastConfig shrinks every window to milliseconds. Tests and demos use it so
// a full negotiation finishes in well under a second.
func FastConfig() Config {
	cfg := DefaultConfig()
	cfg.CollectWindow = 300 * time.Millisecond
	cfg.StragglerWait = 30 * time.Millisecond
	cfg.CollectPoll = 10 * time.Millisecond
	cfg.ConfirmWindow = 300 * time.Millisecond
	cfg.LateConfirmWindow = 100 * time.Millisecond
	cfg.ConfirmPoll = 10 * time.Millisecond
	cfg.RequestInterval = 20 * time.Millisecond
	cfg.SellerPollInterval = 20 * time.Millisecond
	cfg.SellerStartupDelay = 10 * time.Millisecond
	cfg.CompletionTimeout = 5 * time.Second
	cfg.CompletionPoll = 10 * time.Millisecond
	cfg.LateMessageGrace = 10 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// LoadConfig reads a YAML file over the defaults. Fields missing from the
// file keep their default value; durations use Go syntax ("1500ms", "10s").
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects non-positive windows and thresholds and malformed seeds.
func (c Config) Validate() error {
	var errs []error
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"collectWindow", c.CollectWindow},
		{"stragglerWait", c.StragglerWait},
		{"collectPoll", c.CollectPoll},
		{"confirmWindow", c.ConfirmWindow},
		{"lateConfirmWindow", c.LateConfirmWindow},
		{"confirmPoll", c.ConfirmPoll},
		{"requestInterval", c.RequestInterval},
		{"sellerPollInterval", c.SellerPollInterval},
		{"completionTimeout", c.CompletionTimeout},
		{"completionPoll", c.CompletionPoll},
		{"shutdownTimeout", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.SellerStartupDelay < 0 {
		errs = append(errs, fmt.Errorf("sellerStartupDelay must not be negative, got %s", c.SellerStartupDelay))
	}
	if c.LateMessageGrace < 0 {
		errs = append(errs, fmt.Errorf("lateMessageGrace must not be negative, got %s", c.LateMessageGrace))
	}
	if c.MaxNoSellerRetries <= 0 {
		errs = append(errs, fmt.Errorf("maxNoSellerRetries must be positive, got %d", c.MaxNoSellerRetries))
	}
	if c.MaxNoProposalRetries <= 0 {
		errs = append(errs, fmt.Errorf("maxNoProposalRetries must be positive, got %d", c.MaxNoProposalRetries))
	}

	for i, s := range c.Sellers {
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("sellers[%d]: name cannot be empty", i))
		}
		for j, l := range s.Listings {
			if strings.TrimSpace(l.Title) == "" || l.Price <= 0 {
				errs = append(errs, fmt.Errorf("sellers[%d].listings[%d]: need a title and a positive price", i, j))
			}
		}
	}
	for i, b := range c.Buyers {
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, fmt.Errorf("buyers[%d]: name cannot be empty", i))
		}
	}
	return errors.Join(errs...)
}
