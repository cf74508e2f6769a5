package config

import (
	"errors"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入缓存与服务流程。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return newFieldError("LogLevel", "仅支持 panic/fatal/error/warn/info/debug/trace")
	}
	if c.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}
	if c.FetchTimeout.DurationValue() < 0 {
		return newFieldError("FetchTimeout", "不能为负数")
	}
	if c.MaxArtifactSize < 0 {
		return newFieldError("MaxArtifactSize", "不能为负数")
	}
	if strings.ContainsAny(c.UserAgent, "\r\n") {
		return newFieldError("UserAgent", "不允许包含换行")
	}
	if err := validateListenAddr(c.ListenAddr); err != nil {
		return newFieldError("ListenAddr", err.Error())
	}
	return nil
}

func validateListenAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("不能为空")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.New("格式应为 host:port")
	}
	return nil
}
