package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 提供 url 与缓存状态字段，供缓存解析日志复用。
func CacheFields(url, state string) logrus.Fields {
	return logrus.Fields{
		"action": "cache",
		"url":    url,
		"state":  state,
	}
}

// RequestFields 提供 HTTP 请求维度字段，供 serve 模式的访问日志复用。
func RequestFields(requestID, method, path string, status int, cacheState string) logrus.Fields {
	return logrus.Fields{
		"action":     "http",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
		"state":      cacheState,
	}
}
