package config

import (
	"os"

	"emperror.dev/errors"
	"github.com/spf13/viper"
)

type Repository struct {
	MainBranch string `mapstructure:"main_branch"`
	Remote     string
}

type PullRequest struct {
	AutoSubmit      bool   `mapstructure:"auto_submit"`
	DraftByDefault  bool   `mapstructure:"draft_by_default"`
	Template        string
}

type Stack struct {
	MaxDepth int    `mapstructure:"max_depth"`
	Prefix   string
}

type Forge struct {
	Kind     string
	APIToken string `mapstructure:"api_token"`
	BaseURL  string `mapstructure:"base_url"`
}

// Pancake holds the repo-local configuration, read from .pancake/config (TOML).
// Unlike the Stack Engine's own state, this is ambient configuration loaded
// once at process start and handed to the engine's collaborators; the engine
// itself never reads this global directly (see internal/engine).
var Pancake = struct {
	Repository  Repository
	PullRequest PullRequest
	Stack       Stack
	Forge       Forge
}{
	Repository: Repository{
		MainBranch: "main",
		Remote:     "origin",
	},
	Stack: Stack{
		MaxDepth: 10,
	},
}

// Global holds settings loaded from ~/.config/pancake/config.toml (or
// $PANCAKE_CONFIG).
var Global = struct {
	Editor  string
	Pager   string
	Aliases map[string]string
}{
	Aliases: map[string]string{},
}

// Load reads the repo-local config (.pancake/config) from repoConfigDir, then
// the global config, then applies environment overrides. It returns whether a
// repo config file was found.
func Load(repoConfigDir string) (bool, error) {
	found, err := loadRepoConfig(repoConfigDir)
	if err != nil {
		return found, err
	}
	if err := loadGlobalConfig(); err != nil {
		return found, err
	}
	loadFromEnv()
	return found, nil
}

func loadRepoConfig(repoConfigDir string) (bool, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if repoConfigDir != "" {
		v.AddConfigPath(repoConfigDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	if err := v.Unmarshal(&Pancake); err != nil {
		return true, errors.Wrap(err, "failed to parse .pancake/config")
	}
	return true, nil
}

func loadGlobalConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if override := os.Getenv("PANCAKE_CONFIG"); override != "" {
		v.SetConfigFile(override)
	} else {
		v.AddConfigPath("$XDG_CONFIG_HOME/pancake")
		v.AddConfigPath("$HOME/.config/pancake")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return errors.Wrap(v.Unmarshal(&Global), "failed to parse global pancake config")
}

func loadFromEnv() {
	if Pancake.Forge.APIToken != "" {
		return
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		Pancake.Forge.APIToken = token
		if Pancake.Forge.Kind == "" {
			Pancake.Forge.Kind = "github"
		}
		return
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		Pancake.Forge.APIToken = token
		if Pancake.Forge.Kind == "" {
			Pancake.Forge.Kind = "gitlab"
		}
	}
}

// NoColor reports whether colored output has been disabled via environment.
func NoColor() bool {
	return os.Getenv("PANCAKE_NO_COLOR") != ""
}
