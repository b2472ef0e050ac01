package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type PackConfig struct {
	Key           string   `yaml:"key"`
	Name          string   `yaml:"name"`
	Tag           string   `yaml:"tag"`
	Description   string   `yaml:"description"`
	Features      []string `yaml:"features"`
	OriginalPrice int      `yaml:"original_price"`
	PromoPrice    int      `yaml:"promo_price"`
	CheckoutURL   string   `yaml:"checkout_url"`
	Color         string   `yaml:"color"`
}

type Config struct {
	App struct {
		Title       string `yaml:"title"`
		Character   string `yaml:"character"`
		PublicURL   string `yaml:"public_url"`
		Environment string `yaml:"environment"`
	} `yaml:"app"`
	Persona struct {
		Timezone            string `yaml:"timezone"`
		FallbackOffsetHours int    `yaml:"fallback_offset_hours"`
	} `yaml:"persona"`
	ModelSettings struct {
		Model       string  `yaml:"model"`
		BaseURL     string  `yaml:"base_url"`
		Temperature float64 `yaml:"temperature"`
		TopP        float64 `yaml:"top_p"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"model_settings"`
	Generation struct {
		TimeoutSeconds float64 `yaml:"timeout_seconds"`
		HistoryTurns   int     `yaml:"history_turns"`
	} `yaml:"generation"`
	Delays struct {
		MinSeconds  float64 `yaml:"min_seconds"`
		MaxSeconds  float64 `yaml:"max_seconds"`
		TypingSpeed float64 `yaml:"typing_speed"`
	} `yaml:"delays"`
	Limits struct {
		MaxRequestsPerSession  int `yaml:"max_requests_per_session"`
		RateLimitMessages      int `yaml:"rate_limit_messages"`
		RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`
	} `yaml:"limits"`
	Session struct {
		TTLMinutes int `yaml:"ttl_minutes"`
	} `yaml:"session"`
	Storage struct {
		Driver           string `yaml:"driver"`
		SQLitePath       string `yaml:"sqlite_path"`
		SurrealNamespace string `yaml:"surreal_namespace"`
		SurrealDatabase  string `yaml:"surreal_database"`
		RedisPrefix      string `yaml:"redis_prefix"`
	} `yaml:"storage"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Catalog struct {
		ProfileImage string            `yaml:"profile_image"`
		Previews     []string          `yaml:"previews"`
		Links        map[string]string `yaml:"links"`
		Audio        map[string]string `yaml:"audio"`
		Packs        []PackConfig      `yaml:"packs"`
	} `yaml:"catalog"`
}

// Default returns the configuration used when no config.yml is present.
func Default() *Config {
	config := &Config{}

	config.App.Title = "Chat Exclusivo"
	config.App.Character = "Mylle"
	config.App.PublicURL = "http://localhost:8501"
	config.App.Environment = "development"

	config.Persona.Timezone = "America/Sao_Paulo"
	config.Persona.FallbackOffsetHours = -3

	config.ModelSettings.Model = "gemini-2.0-flash"
	config.ModelSettings.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	config.ModelSettings.Temperature = 0.8
	config.ModelSettings.TopP = 0.95
	config.ModelSettings.MaxTokens = 1024

	config.Generation.TimeoutSeconds = 30
	config.Generation.HistoryTurns = 5

	config.Delays.MinSeconds = 1
	config.Delays.MaxSeconds = 4
	config.Delays.TypingSpeed = 0.05

	config.Limits.MaxRequestsPerSession = 50
	config.Limits.RateLimitMessages = 100
	config.Limits.RateLimitWindowSeconds = 3600

	config.Session.TTLMinutes = 120

	config.Storage.Driver = "sqlite"
	config.Storage.SQLitePath = "database/chatbot.db"
	config.Storage.SurrealNamespace = "personachat"
	config.Storage.SurrealDatabase = "chat"
	config.Storage.RedisPrefix = "personachat"

	config.Server.Port = "8501"

	config.Catalog.ProfileImage = "https://images.pexels.com/photos/1239291/pexels-photo-1239291.jpeg"
	config.Catalog.Previews = []string{
		"https://images.pexels.com/photos/1040881/pexels-photo-1040881.jpeg",
		"https://images.pexels.com/photos/1043471/pexels-photo-1043471.jpeg",
		"https://images.pexels.com/photos/1382731/pexels-photo-1382731.jpeg",
		"https://images.pexels.com/photos/1758144/pexels-photo-1758144.jpeg",
		"https://images.pexels.com/photos/1758146/pexels-photo-1758146.jpeg",
		"https://images.pexels.com/photos/1758148/pexels-photo-1758148.jpeg",
	}
	config.Catalog.Links = map[string]string{
		"instagram": "https://instagram.com/myllealves",
		"telegram":  "https://t.me/myllealves",
		"whatsapp":  "https://wa.me/5511999999999",
	}
	config.Catalog.Audio = map[string]string{
		"welcome": "assets/audio/welcome.mp3",
	}
	config.Catalog.Packs = []PackConfig{
		{
			Key:           "essencial",
			Name:          "Pack Essencial",
			Tag:           "🔥 Mais Popular",
			Description:   "Conteúdo exclusivo para começar: bastidores, fotos inéditas e muito charme!",
			Features:      []string{"50+ Fotos Exclusivas", "10+ Vídeos", "Acesso por 30 dias", "Suporte VIP"},
			OriginalPrice: 97,
			PromoPrice:    47,
			CheckoutURL:   "https://pay.hotmart.com/essencial",
			Color:         "#ff6b6b",
		},
		{
			Key:           "premium",
			Name:          "Pack Premium",
			Tag:           "💎 Premium",
			Description:   "Mais conteúdo, experiências interativas e novidades toda semana.",
			Features:      []string{"100+ Fotos Exclusivas", "25+ Vídeos Premium", "Conteúdo Interativo", "Acesso por 60 dias"},
			OriginalPrice: 197,
			PromoPrice:    97,
			CheckoutURL:   "https://pay.hotmart.com/premium",
			Color:         "#74b9ff",
		},
		{
			Key:           "vip",
			Name:          "Pack VIP",
			Tag:           "👑 VIP Supremo",
			Description:   "Acesso completo a todo o conteúdo, lives exclusivas e muito mais!",
			Features:      []string{"200+ Fotos Exclusivas", "50+ Vídeos VIP", "Lives Exclusivas", "Acesso Vitalício", "Chat Direto"},
			OriginalPrice: 297,
			PromoPrice:    147,
			CheckoutURL:   "https://pay.hotmart.com/vip",
			Color:         "#fd79a8",
		},
	}

	return config
}

// LoadConfig reads path on top of the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
