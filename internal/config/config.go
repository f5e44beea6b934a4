package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type TelegramConfig struct {
	ApiKey      string `yaml:"api_key" env-default:""`
	AdminChatId int64  `yaml:"admin_chat_id" env-default:"0"`
	// Seconds to keep the result announcement before deleting it.
	// Giveaways that expired while the process was down get the longer grace.
	DeleteGraceSec        int `yaml:"delete_grace_sec" env-default:"30"`
	OfflineDeleteGraceSec int `yaml:"offline_delete_grace_sec" env-default:"60"`
}

type StorageConfig struct {
	File string `yaml:"file" env-default:"bot_data.json"`
}

type KeysConfig struct {
	TTLHours         int `yaml:"ttl_hours" env-default:"24"`
	TokenLength      int `yaml:"token_length" env-default:"16"`
	SweepIntervalMin int `yaml:"sweep_interval_min" env-default:"60"`
}

type ConversationConfig struct {
	TTLMin int `yaml:"ttl_min" env-default:"15"`
}

type DashboardConfig struct {
	AdminToken string `yaml:"admin_token" env-default:""`
}

type Config struct {
	Env          string             `yaml:"env" env-default:"local"`
	Listen       Listen             `yaml:"listen"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Storage      StorageConfig      `yaml:"storage"`
	Keys         KeysConfig         `yaml:"keys"`
	Conversation ConversationConfig `yaml:"conversation"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
