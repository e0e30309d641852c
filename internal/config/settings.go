package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// CommandSettings lists the literal aliases of each command.
type CommandSettings struct {
	Fortune []string `toml:"fortune" yaml:"fortune"`
	Lottery []string `toml:"lottery" yaml:"lottery"`
	Reroll  []string `toml:"reroll"  yaml:"reroll"`
}

// BlacklistSettings lists monitored senders and the groups they are
// monitored in.
type BlacklistSettings struct {
	Users  []int64 `toml:"users"  yaml:"users"`
	Groups []int64 `toml:"groups" yaml:"groups"`
}

// FortuneSettings maps fortune categories to images.
type FortuneSettings struct {
	// AssetsDir is prepended to relative image paths.
	AssetsDir string            `toml:"assets_dir" yaml:"assets_dir"`
	Images    map[string]string `toml:"images"     yaml:"images"`
}

// LotterySettings configures how a selected member is shown.
type LotterySettings struct {
	// AvatarURL is a template; "{id}" is replaced with the user id.
	AvatarURL string `toml:"avatar_url" yaml:"avatar_url"`
}

// Settings is the bot's behavioural configuration, read from a TOML or YAML
// file. Fields absent from the file keep their defaults.
type Settings struct {
	Commands    CommandSettings   `toml:"commands"     yaml:"commands"`
	Blacklist   BlacklistSettings `toml:"blacklist"    yaml:"blacklist"`
	Fortune     FortuneSettings   `toml:"fortune"      yaml:"fortune"`
	Lottery     LotterySettings   `toml:"lottery"      yaml:"lottery"`
	PrivateText string            `toml:"private_text" yaml:"private_text"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Commands: CommandSettings{
			Fortune: []string{"运势", "今日运势", "ys"},
			Lottery: []string{"抽老婆", "今日老婆", "lp"},
			Reroll:  []string{"再抽一次", "clp"},
		},
		Fortune: FortuneSettings{
			AssetsDir: "assets",
			Images: map[string]string{
				"大吉": "大吉.png",
				"小吉": "小吉.png",
				"末吉": "末吉.png",
				"平":  "平.png",
				"小凶": "小凶.png",
				"大凶": "大凶.png",
			},
		},
		Lottery: LotterySettings{
			AvatarURL: "https://q1.qlogo.cn/g?b=qq&nk={id}&s=640",
		},
		PrivateText: "小BOT不是很理解哦，因为还没有做私聊捏",
	}
}

// LoadSettings reads path over DefaultSettings. The format follows the
// extension: .toml, or .yaml/.yml. An empty path or a missing file yields
// the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		return s, fmt.Errorf("settings %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return s, fmt.Errorf("decode settings %s: %w", path, err)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	if len(s.Commands.Fortune) == 0 || len(s.Commands.Lottery) == 0 || len(s.Commands.Reroll) == 0 {
		return errors.New("settings: every command needs at least one alias")
	}
	return nil
}

// FortuneImage returns the image reference for a category, or "" when none
// is configured. Relative paths are joined to AssetsDir; URLs are returned
// unchanged.
func (s Settings) FortuneImage(category string) string {
	p, ok := s.Fortune.Images[category]
	if !ok || p == "" {
		return ""
	}
	if strings.Contains(p, "://") || filepath.IsAbs(p) || s.Fortune.AssetsDir == "" {
		return p
	}
	return filepath.Join(s.Fortune.AssetsDir, p)
}

// AvatarURL renders the avatar template for userID.
func (s Settings) AvatarURL(userID int64) string {
	if s.Lottery.AvatarURL == "" {
		return ""
	}
	return strings.ReplaceAll(s.Lottery.AvatarURL, "{id}", strconv.FormatInt(userID, 10))
}
