package application

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	zlog "github.com/lk2023060901/awswire-go/pkg/log"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
	zviper "github.com/lk2023060901/awswire-go/pkg/util/viper"
)

const (
	envEC2MetadataV1Disabled = "AWS_EC2_METADATA_V1_DISABLED"
	envProfile               = "AWS_PROFILE"
	envSharedConfigFile      = "AWS_CONFIG_FILE"

	propEC2MetadataV1Disabled = "ec2_metadata_v1_disabled"
	defaultProfile            = "default"
)

// resolveEC2MetadataV1Disabled 解析是否禁用实例元数据 v1 凭证模式。
//
// 优先级：环境变量 AWS_EC2_METADATA_V1_DISABLED，其次为共享配置文件中当前 profile 的
// ec2_metadata_v1_disabled 属性，都未设置时为 false。取值只接受 true/false（大小写不敏感）。
func (a *Application) resolveEC2MetadataV1Disabled(section ClientSection) (bool, error) {
	if val := a.getenv(envEC2MetadataV1Disabled); val != "" {
		return parseStrictBool(envEC2MetadataV1Disabled, val)
	}

	path := section.SharedConfigFile
	if path == "" {
		path = a.getenv(envSharedConfigFile)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return false, nil
		}
		path = filepath.Join(home, ".aws", "config")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat shared config file %q", path)
	}

	shared := zviper.New()
	if err := shared.LoadFileAs(path, "ini"); err != nil {
		return false, errors.Wrapf(err, "load shared config file %q", path)
	}

	profile := section.Profile
	if profile == "" {
		profile = a.getenvDefault(envProfile, defaultProfile)
	}
	key := profileSection(profile) + "." + propEC2MetadataV1Disabled
	if !shared.IsSet(key) {
		return false, nil
	}
	zlog.Debug("ec2 metadata v1 toggle from shared config",
		zap.String("path", path),
		zap.String("profile", profile))
	return parseStrictBool(propEC2MetadataV1Disabled, shared.GetString(key))
}

// profileSection 返回 profile 在共享配置文件中的节名：default 为 [default]，其余为 [profile <name>]。
func profileSection(profile string) string {
	if profile == defaultProfile {
		return defaultProfile
	}
	return "profile " + profile
}

func parseStrictBool(key, val string) (bool, error) {
	switch {
	case strings.EqualFold(val, "true"):
		return true, nil
	case strings.EqualFold(val, "false"):
		return false, nil
	default:
		return false, merr.WrapErrConfigInvalidValue(key, val, "expect true or false")
	}
}
