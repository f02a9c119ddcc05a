package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"taskflow/internal/domain"
)

// Config models taskflow.yml.
type Config struct {
	Team struct {
		Users []UserConfig `yaml:"users"`
	} `yaml:"team"`
	Recurrence struct {
		MonthEnd string `yaml:"month_end"`
	} `yaml:"recurrence"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		AllowUserHeader bool `yaml:"allow_user_header"`
	} `yaml:"auth"`
	Storage struct {
		SeedDemoTasks bool `yaml:"seed_demo_tasks"`
	} `yaml:"storage"`
}

type UserConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	AvatarURL string `yaml:"avatar_url"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tf init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Team.Users) == 0 {
		return fmt.Errorf("config.team.users is required")
	}
	seen := map[string]bool{}
	for i, u := range c.Team.Users {
		if u.ID == "" {
			return fmt.Errorf("config.team.users[%d].id is required", i)
		}
		if u.ID == domain.SystemUserID {
			return fmt.Errorf("user id %q is reserved", u.ID)
		}
		if seen[u.ID] {
			return fmt.Errorf("duplicate user id %s", u.ID)
		}
		seen[u.ID] = true
		if strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("user %s has empty name", u.ID)
		}
		if !domain.Role(u.Role).Valid() {
			return fmt.Errorf("user %s has unknown role %q (Manager or Member)", u.ID, u.Role)
		}
	}
	switch c.Recurrence.MonthEnd {
	case "clamp", "roll":
	default:
		return fmt.Errorf("config.recurrence.month_end must be 'clamp' or 'roll'")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Users returns the roster in file order.
func (c *Config) Users() []domain.User {
	users := make([]domain.User, 0, len(c.Team.Users))
	for _, u := range c.Team.Users {
		users = append(users, domain.User{
			ID:        u.ID,
			Name:      u.Name,
			Role:      domain.Role(u.Role),
			AvatarURL: u.AvatarURL,
		})
	}
	return users
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the config a fresh workspace starts with.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Omitted
// sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	users := cfg.Team.Users
	cfg.Team.Users = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Team.Users == nil {
		cfg.Team.Users = users
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `team:
  users:
    - id: u1
      name: Alex Manager
      role: Manager
      avatar_url: https://i.pravatar.cc/150?u=u1
    - id: u2
      name: Brenda Developer
      role: Member
      avatar_url: https://i.pravatar.cc/150?u=u2
    - id: u3
      name: Charlie Designer
      role: Member
      avatar_url: https://i.pravatar.cc/150?u=u3
    - id: u4
      name: Diana QA
      role: Member
      avatar_url: https://i.pravatar.cc/150?u=u4

recurrence:
  # clamp: Jan 31 -> Feb 28/29; roll: Jan 31 -> Mar 2/3
  month_end: clamp

server:
  addr: 127.0.0.1:8080
  base_path: /v0

auth:
  allow_user_header: true

storage:
  seed_demo_tasks: true
`
