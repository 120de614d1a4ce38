package gateway

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"
)

// Config is the gateway server configuration. Values come from defaults,
// then an optional TOML file, then environment overrides, in that order.
type Config struct {
	// Address to listen on (e.g. ":5000")
	ListenAddr string `toml:"listen_addr" env:"LISTEN_ADDR"`

	// Base URL clients use to reach this server; upload URLs are built
	// from it.
	PublicBaseURL string `toml:"public_base_url" env:"PUBLIC_BASE_URL"`

	// RouterURL is the OpenAI-compatible chat-completions base
	// (".../v1"); InferenceURL is the raw model inference base used by
	// the image endpoints.
	RouterURL    string `toml:"router_url" env:"ROUTER_URL"`
	InferenceURL string `toml:"inference_url" env:"INFERENCE_URL"`

	// Token is the bearer credential for every upstream call. Never read
	// from the config file.
	Token string `toml:"-" env:"HF_TOKEN"`

	// Model roster per request shape.
	TextModel   string `toml:"text_model" env:"TEXT_MODEL"`
	VisionModel string `toml:"vision_model" env:"VISION_MODEL"`
	ImageModel  string `toml:"image_model" env:"IMAGE_MODEL"`
	EditModel   string `toml:"edit_model" env:"EDIT_MODEL"`

	// UploadDir is where multipart uploads are stored.
	UploadDir string `toml:"upload_dir" env:"UPLOAD_DIR"`

	// DBPath is the SQLite database path for conversations. Empty means
	// in-memory.
	DBPath string `toml:"db_path" env:"DB_PATH"`

	// APITokens maps bearer tokens to user IDs for the conversation API.
	APITokens map[string]string `toml:"api_tokens"`

	Debug bool `toml:"debug" env:"DEBUG"`
}

// DefaultConfig returns the built-in configuration, pointed at the hosted
// inference router.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":5000",
		PublicBaseURL: "http://localhost:5000",
		RouterURL:     "https://router.huggingface.co/v1",
		InferenceURL:  "https://router.huggingface.co/hf-inference",
		TextModel:     "Qwen/Qwen2.5-Coder-32B-Instruct",
		VisionModel:   "meta-llama/Llama-3.2-11B-Vision-Instruct",
		ImageModel:    "black-forest-labs/FLUX.1-schnell",
		EditModel:     "timbrooks/instruct-pix2pix",
		UploadDir:     "uploads",
	}
}

// LoadConfig builds the effective configuration. Path may be empty, in which
// case only defaults and the environment apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	return cfg, nil
}

// completionsURL is the chat-completions endpoint.
func (c Config) completionsURL() string {
	return c.RouterURL + "/chat/completions"
}

// modelURL is the raw inference endpoint for a model.
func (c Config) modelURL(model string) string {
	return c.InferenceURL + "/models/" + model
}
