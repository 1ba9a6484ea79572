package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Config struct {
	// Port Settings
	Host       string `json:"host"`       // The domain name of the server.
	ServerAddr string `json:"serverAddr"` // The address the server endpoint binds to.

	Auth struct {
		AccessTokenSecret  string `json:"accessTokenSecret"`
		RefreshTokenSecret string `json:"refreshTokenSecret"`
	} `json:"auth"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
	} `json:"postgres"`

	// Campus LDAP bind, optional. When Enable is false only password
	// accounts can log in.
	LDAP struct {
		Enable   bool   `json:"enable"`
		Address  string `json:"address"`
		UserName string `json:"userName"`
		Password string `json:"password"`
		SearchDN string `json:"searchDN"`
	} `json:"ldap"`

	SMTP struct {
		Enable   bool   `json:"enable"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
		User     string `json:"user"`
		Password string `json:"password"`
		Sender   string `json:"sender"`
	} `json:"smtp"`

	// External similarity checker endpoint.
	Similarity struct {
		BaseURL     string `json:"baseURL"`
		AccessToken string `json:"accessToken"`
	} `json:"similarity"`

	// Deadline reminder schedule, cron spec. Empty disables the manager.
	ReminderSpec string `json:"reminderSpec"`
	// Hours before DueAt within which a reminder is sent.
	ReminderWindowHours int `json:"reminderWindowHours"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads the configuration file. In debug mode it reads
// ./etc/debug-config.yaml (or CAPSTONE_DEBUG_CONFIG_PATH); otherwise it
// reads the config mounted from the ConfigMap.
func initConfig() *Config {
	config := &Config{}
	var configPath string
	if IsDebugMode() {
		if os.Getenv("CAPSTONE_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("CAPSTONE_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}

	configFile, err := os.ReadFile(configPath)
	if err != nil {
		klog.Fatalf("Read config file failed, err: %v", err)
	}
	if err = yaml.Unmarshal(configFile, config); err != nil {
		klog.Fatalf("Unmarshal config file failed, err: %v", err)
	}
	return config
}
