package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON/INI 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// 在调用 Unmarshal/UnmarshalKey 之前需要先调用 LoadFile 加载配置文件。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// LoadFile 将 YAML、JSON 或 INI 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json/.ini）推断。
func (c *Config) LoadFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return c.LoadFileAs(path, "yaml")
	case ".json":
		return c.LoadFileAs(path, "json")
	case ".ini":
		return c.LoadFileAs(path, "ini")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
		return c.LoadFileAs(path, "")
	}
}

// LoadFileAs 以指定类型加载配置文件，用于没有扩展名的文件（例如 ~/.aws/config）。
// INI 文件的键形如 "<section>.<key>"。
func (c *Config) LoadFileAs(path string, configType string) error {
	if c.v == nil {
		c.v = spfviper.New()
	}
	c.v.SetConfigFile(path)
	if configType != "" {
		c.v.SetConfigType(configType)
	}
	return c.v.ReadInConfig()
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.UnmarshalKey(key, dst)
}

// GetString 返回 key 对应的字符串值，不存在时为空串。key 大小写不敏感。
func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// IsSet 判断配置中是否存在 key。
func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}
